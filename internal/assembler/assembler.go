// Package assembler packs ranked candidates into the formatted context
// returned to a caller: a token-budgeted, top-k-bounded selection grouped by
// conversation, plus the knowledge-graph edges that contributed evidence.
package assembler

import (
	"github.com/ctxfabric/retrieval-engine/internal/graph"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// DefaultTokenBudget is the token budget used when a request specifies none.
const DefaultTokenBudget = 2000

// DefaultTopK is the candidate-count cap used when a request specifies none.
const DefaultTopK = 5

// charsPerToken approximates token count from character count; ported from
// the rough 4-characters-per-token heuristic used elsewhere in the corpus.
const charsPerToken = 4

// EstimateTokens returns ceil(len(content) / charsPerToken).
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}
	return (len(content) + charsPerToken - 1) / charsPerToken
}

// Assembled is the packed context produced by Assemble.
type Assembled struct {
	Messages             []types.ContextMessage
	Edges                []types.KGEdge
	TotalTokensEstimate  int
	ContextWindowUsed    float64 // percent of tokenBudget consumed, 0-100
	UniqueConversations  int
	TruncatedByBudget    bool
}

// Assemble selects from candidates (assumed pre-sorted best-first by the
// fusion ranker) greedily in score order until either topK messages are
// selected or the next candidate would exceed tokenBudget, then reorders the
// selection by conversation, preserving each conversation's internal score
// order. hops supplies the edges eligible to be reported as contributing
// evidence; only edges whose evidence overlaps the final selection are kept.
func Assemble(candidates []types.Candidate, hops []graph.HopEdge, tokenBudget, topK int) *Assembled {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	selected := make([]types.Candidate, 0, topK)
	tokensByID := make(map[uuid.UUID]int)
	var totalTokens int
	truncated := false

	for _, cand := range candidates {
		if len(selected) >= topK {
			truncated = true
			break
		}
		tokens := EstimateTokens(cand.Message.Content)
		if totalTokens+tokens > tokenBudget {
			truncated = true
			break
		}
		tokensByID[cand.Message.ID] = tokens
		totalTokens += tokens
		selected = append(selected, cand)
	}

	groupOrder := make([]uuid.UUID, 0)
	groups := make(map[uuid.UUID][]types.Candidate)
	for _, cand := range selected {
		convID := cand.Message.ConversationID
		if _, ok := groups[convID]; !ok {
			groupOrder = append(groupOrder, convID)
		}
		groups[convID] = append(groups[convID], cand)
	}

	messages := make([]types.ContextMessage, 0, len(selected))
	selectedIDs := make(map[uuid.UUID]bool, len(selected))
	for _, convID := range groupOrder {
		for _, cand := range groups[convID] {
			role, content := types.ParseRole(cand.Message.Content)
			messages = append(messages, types.ContextMessage{
				MessageID: cand.Message.ID,
				Role:      role,
				Content:   content,
				Score:     cand.FinalScore,
				Tokens:    tokensByID[cand.Message.ID],
			})
			selectedIDs[cand.Message.ID] = true
		}
	}

	edges := make([]types.KGEdge, 0)
	seenEdges := make(map[uuid.UUID]bool)
	for _, he := range hops {
		if seenEdges[he.Edge.ID] {
			continue
		}
		for _, mid := range he.Edge.EvidenceMessageIDs {
			if selectedIDs[mid] {
				edges = append(edges, he.Edge)
				seenEdges[he.Edge.ID] = true
				break
			}
		}
	}

	windowUsed := 0.0
	if tokenBudget > 0 {
		windowUsed = float64(totalTokens) / float64(tokenBudget) * 100
	}

	return &Assembled{
		Messages:            messages,
		Edges:               edges,
		TotalTokensEstimate: totalTokens,
		ContextWindowUsed:   windowUsed,
		UniqueConversations: len(groupOrder),
		TruncatedByBudget:   truncated,
	}
}
