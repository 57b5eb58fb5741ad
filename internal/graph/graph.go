// Package graph implements a multi-hop breadth-first expansion from a set
// of seed edges, bounded by a hop count, deduplicating edges and nodes so
// cyclic graphs terminate.
package graph

import (
	"context"
	"fmt"

	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// DefaultMaxHops bounds traversal depth when the caller does not specify one.
const DefaultMaxHops = 2

// HopEdge pairs a reached edge with its hop distance from the nearest seed
// and the similarity of the seed edge that reached it — seeds themselves
// have Hop 0 and SeedSimilarity equal to their own vector-search score. This
// gives the fusion ranker a decayable score for edges that were never
// themselves scored by the vector searcher.
type HopEdge struct {
	Edge           types.KGEdge
	Hop            int
	SeedSimilarity float64
}

// Traverser runs BFS over a Storage's edges_touching operation.
type Traverser struct {
	store storage.Storage
}

// New builds a Traverser over store.
func New(store storage.Storage) *Traverser {
	return &Traverser{store: store}
}

// Traverse expands from seeds (each already hop 0) up to maxHops edges deep,
// returning the union of seeds and every further-reached edge, each
// annotated with hop distance and the best similarity of the seed(s) that
// reached it. maxHops <= 0 uses DefaultMaxHops.
func (t *Traverser) Traverse(ctx context.Context, conversationID uuid.UUID, seeds []storage.EdgeHit, maxHops int) ([]HopEdge, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	visitedEdges := make(map[uuid.UUID]bool, len(seeds))
	nodeSimilarity := make(map[string]float64)
	var results []HopEdge
	var frontier []string

	for _, seed := range seeds {
		if visitedEdges[seed.Edge.ID] {
			continue
		}
		visitedEdges[seed.Edge.ID] = true
		results = append(results, HopEdge{Edge: seed.Edge, Hop: 0, SeedSimilarity: seed.Similarity})
		for _, node := range []string{seed.Edge.Source, seed.Edge.Target} {
			if seed.Similarity > nodeSimilarity[node] {
				nodeSimilarity[node] = seed.Similarity
				frontier = append(frontier, node)
			}
		}
	}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			sim := nodeSimilarity[node]
			edges, err := t.store.EdgesTouching(ctx, conversationID, node)
			if err != nil {
				return nil, fmt.Errorf("graph traversal at hop %d: %w", hop, err)
			}
			for _, edge := range edges {
				if visitedEdges[edge.ID] {
					continue
				}
				visitedEdges[edge.ID] = true
				results = append(results, HopEdge{Edge: edge, Hop: hop, SeedSimilarity: sim})

				for _, neighbor := range []string{edge.Source, edge.Target} {
					if sim > nodeSimilarity[neighbor] || nodeSimilarity[neighbor] == 0 {
						if sim >= nodeSimilarity[neighbor] {
							nodeSimilarity[neighbor] = sim
						}
						next = append(next, neighbor)
					}
				}
			}
		}
		frontier = next
	}
	return results, nil
}
