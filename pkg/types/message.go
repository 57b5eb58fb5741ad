package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation groups messages and the knowledge graph derived from them.
type Conversation struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Content        string
	CreatedAt      time.Time
	Sequence       int // ordinal within ConversationID; stored and indexed, but FetchMessages orders by the requested ids, not by Sequence
}

// Validate checks a Message's invariants: non-nil identifiers and non-empty
// content.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("%w: message id is nil", ErrIntegrityViolation)
	}
	if m.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: message conversation id is nil", ErrIntegrityViolation)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: message content is empty", ErrIntegrityViolation)
	}
	return nil
}

// ParseRole extracts a role tag from a "role:content" prefix, defaulting to
// RoleUser when no recognized prefix is present: split on the first colon,
// compare the lowercased prefix against the known roles.
func ParseRole(content string) (Role, string) {
	idx := strings.IndexByte(content, ':')
	if idx < 0 {
		return RoleUser, content
	}
	prefix := strings.ToLower(strings.TrimSpace(content[:idx]))
	rest := strings.TrimSpace(content[idx+1:])
	switch prefix {
	case string(RoleUser):
		return RoleUser, rest
	case string(RoleAssistant):
		return RoleAssistant, rest
	case string(RoleSystem):
		return RoleSystem, rest
	default:
		return RoleUser, content
	}
}
