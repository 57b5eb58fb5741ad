// Package fusion merges the lexical pathway's message hits with the graph
// pathway's evidence messages, weights each by keyword coverage, and
// produces one ordered candidate list.
package fusion

import (
	"sort"

	"github.com/ctxfabric/retrieval-engine/internal/graph"
	"github.com/ctxfabric/retrieval-engine/internal/relevance"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// decay returns 1/(1+hop), the per-hop attenuation applied to an edge's
// seed similarity before it contributes to a message's base score.
func decay(hop int) float64 {
	return 1 / (1 + float64(hop))
}

// boost returns 2.0 + 2.0*coverage, the coverage-weighted multiplier applied
// to every candidate's base score.
func boost(coverage float64) float64 {
	return 2.0 + 2.0*coverage
}

// Rank merges lexical hits L and graph hop-edges G into one deduplicated,
// scored, ordered candidate list. fetch resolves message bodies for message
// ids named as evidence by edges in G but not already present in L; it is
// typically storage.Storage.FetchMessages.
func Rank(fp *types.Fingerprint, lexical []storage.LexicalHit, hops []graph.HopEdge, fetch func(ids []uuid.UUID) ([]types.Message, error)) ([]types.Candidate, error) {
	byID := make(map[uuid.UUID]*types.Candidate)

	for _, hit := range lexical {
		byID[hit.Message.ID] = &types.Candidate{
			Message:  hit.Message,
			LexScore: hit.Score,
			Hop:      -1,
			Provenance: types.Provenance{Lexical: true},
		}
	}

	var missing []uuid.UUID
	seenMissing := make(map[uuid.UUID]bool)
	for _, he := range hops {
		for _, mid := range he.Edge.EvidenceMessageIDs {
			if _, ok := byID[mid]; ok {
				continue
			}
			if seenMissing[mid] {
				continue
			}
			seenMissing[mid] = true
			missing = append(missing, mid)
		}
	}

	if len(missing) > 0 {
		msgs, err := fetch(missing)
		if err != nil {
			return nil, err
		}
		for _, msg := range msgs {
			byID[msg.ID] = &types.Candidate{Message: msg, Hop: -1}
		}
	}

	for _, he := range hops {
		edgeScore := he.SeedSimilarity * decay(he.Hop)
		for _, mid := range he.Edge.EvidenceMessageIDs {
			cand, ok := byID[mid]
			if !ok {
				continue
			}
			cand.Provenance.Graph = true
			if cand.Hop == -1 || he.Hop < cand.Hop {
				cand.Hop = he.Hop
			}
			if edgeScore > cand.VecScore {
				cand.VecScore = edgeScore
			}
		}
	}

	result := make([]types.Candidate, 0, len(byID))
	for _, cand := range byID {
		if !relevance.MessageRelevant(fp, cand.Message.Content, cand.LexScore) {
			continue
		}
		base := cand.LexScore
		if cand.VecScore > base {
			base = cand.VecScore
		}
		coverage := relevance.Coverage(fp, cand.Message.Content)
		cand.FinalScore = base * boost(coverage)
		result = append(result, *cand)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		ra, rb := provenanceRank(a.Provenance), provenanceRank(b.Provenance)
		if ra != rb {
			return ra < rb
		}
		return a.Message.ID.String() < b.Message.ID.String()
	})
	return result, nil
}

// provenanceRank orders lexical-only before graph-only before mixed.
func provenanceRank(p types.Provenance) int {
	switch {
	case p.Mixed():
		return 2
	case p.Graph:
		return 1
	default:
		return 0
	}
}
