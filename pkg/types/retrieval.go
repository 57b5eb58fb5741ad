package types

import (
	"time"

	"github.com/google/uuid"
)

// Provenance records which retrieval path(s) surfaced a candidate, used by
// the fusion ranker's tie-break ordering (lexical-only, graph-only, mixed).
type Provenance struct {
	Lexical bool
	Graph   bool
}

// Mixed reports whether the candidate was found by both pathways.
func (p Provenance) Mixed() bool { return p.Lexical && p.Graph }

// Candidate is a message under consideration for inclusion in the assembled
// context, carrying the scoring inputs the fusion ranker needs.
type Candidate struct {
	Message    Message
	LexScore   float64 // 0 when not found by the lexical path
	VecScore   float64 // best seed similarity times 1/(1+hop) among edges that named this message as evidence, 0 if none
	Hop        int     // minimum graph hop distance at which this message's edge was reached, -1 if not reached via graph
	Provenance Provenance
	FinalScore float64
}

// Mode selects which retrieval pathways the dispatcher runs.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeLexical  Mode = "lexical_only"
	ModeGraphOnly Mode = "graph_only"
)

// Request is the retrieval request envelope.
type Request struct {
	ConversationID uuid.UUID
	Query          string
	Mode           Mode
	TopK           int
	TokenBudget    int
	Deadline       time.Duration
}

// ContextMessage is one message formatted for inclusion in the assembled
// context.
type ContextMessage struct {
	MessageID uuid.UUID
	Role      Role
	Content   string
	Score     float64
	Tokens    int
}

// Stats reports per-request retrieval statistics.
type Stats struct {
	LexicalCandidates   int
	EdgeMatches         int // vector pathway's pre-traversal top-k hit count
	ReachedEdges        int // edges reachable from seeds after BFS expansion
	FusedCandidates     int
	AssembledMessages   int
	UniqueConversations int
	ContextWindowUsed   float64 // percent of the token budget consumed, 0-100
	Mode                Mode
	TruncatedByBudget   bool
	Degraded            bool // true when one of the two hybrid sibling subtasks failed but the other produced results
	Duration            time.Duration
}

// Response is the retrieval response envelope.
type Response struct {
	Messages []ContextMessage
	Edges    []KGEdge
	Stats    Stats
}
