package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KGNode is a typed entity in a conversation's knowledge graph.
type KGNode struct {
	ID             string // caller-assigned label, unique within ConversationID
	ConversationID uuid.UUID
	NodeType       string
	CreatedAt      time.Time
}

// KGEdge is a typed relation between two nodes, anchored to the evidence
// messages it was derived from.
type KGEdge struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	Source            string
	Relation          string
	Target            string
	EvidenceMessageIDs []uuid.UUID
	CreatedAt         time.Time
}

// Validate enforces that every edge carries at least one evidence message,
// since an edge with no evidence cannot be traced back to corpus content.
func (e *KGEdge) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: edge id is nil", ErrIntegrityViolation)
	}
	if e.Source == "" || e.Relation == "" || e.Target == "" {
		return fmt.Errorf("%w: edge is missing source, relation, or target", ErrIntegrityViolation)
	}
	if len(e.EvidenceMessageIDs) == 0 {
		return fmt.Errorf("%w: edge %s has no evidence messages", ErrIntegrityViolation, e.ID)
	}
	return nil
}

// Text renders the edge as the "source relation target" string used both for
// embedding and for the relevance filter's substring match.
func (e *KGEdge) Text() string {
	return e.Source + " " + e.Relation + " " + e.Target
}

// EdgeEmbedding is the dense-vector representation of an edge's Text(), kept
// separate from KGEdge so storage can version or regenerate embeddings
// independently of the graph row.
type EdgeEmbedding struct {
	EdgeID    uuid.UUID
	Vector    []float32 // 768-dim
	Model     string
	CreatedAt time.Time
}

// EmbeddingDim is the fixed dimensionality of edge-text and query embeddings
// throughout the system.
const EmbeddingDim = 768
