package graph

import (
	"context"
	"testing"

	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	storage.Storage
	edgesByNode map[string][]types.KGEdge
}

func (f *fakeStorage) EdgesTouching(ctx context.Context, conversationID uuid.UUID, nodeID string) ([]types.KGEdge, error) {
	return f.edgesByNode[nodeID], nil
}

func TestTraverse_ExpandsUpToMaxHops(t *testing.T) {
	convID := uuid.New()
	e1 := types.KGEdge{ID: uuid.New(), Source: "A", Target: "B"}
	e2 := types.KGEdge{ID: uuid.New(), Source: "B", Target: "C"}
	e3 := types.KGEdge{ID: uuid.New(), Source: "C", Target: "D"}

	fake := &fakeStorage{edgesByNode: map[string][]types.KGEdge{
		"A": {e1},
		"B": {e1, e2},
		"C": {e2, e3},
		"D": {e3},
	}}

	tr := New(fake)
	seeds := []storage.EdgeHit{{Edge: e1, Similarity: 0.9}}
	hits, err := tr.Traverse(context.Background(), convID, seeds, 2)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, e1.ID, hits[0].Edge.ID)
	assert.Equal(t, 0, hits[0].Hop)
	assert.Equal(t, 0.9, hits[0].SeedSimilarity)
	assert.Equal(t, e2.ID, hits[1].Edge.ID)
	assert.Equal(t, 1, hits[1].Hop)
	assert.Equal(t, 0.9, hits[1].SeedSimilarity)
	assert.Equal(t, e3.ID, hits[2].Edge.ID)
	assert.Equal(t, 2, hits[2].Hop)
	assert.Equal(t, 0.9, hits[2].SeedSimilarity)
}

func TestTraverse_DedupsCycles(t *testing.T) {
	convID := uuid.New()
	e1 := types.KGEdge{ID: uuid.New(), Source: "A", Target: "B"}
	e2 := types.KGEdge{ID: uuid.New(), Source: "B", Target: "A"}

	fake := &fakeStorage{edgesByNode: map[string][]types.KGEdge{
		"A": {e1, e2},
		"B": {e1, e2},
	}}

	tr := New(fake)
	seeds := []storage.EdgeHit{{Edge: e1, Similarity: 0.5}}
	hits, err := tr.Traverse(context.Background(), convID, seeds, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestTraverse_DefaultMaxHops(t *testing.T) {
	convID := uuid.New()
	fake := &fakeStorage{edgesByNode: map[string][]types.KGEdge{}}
	tr := New(fake)
	seeds := []storage.EdgeHit{{Edge: types.KGEdge{ID: uuid.New(), Source: "A", Target: "A"}, Similarity: 0.1}}
	hits, err := tr.Traverse(context.Background(), convID, seeds, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Hop)
}

func TestTraverse_DeduplicatesSeeds(t *testing.T) {
	convID := uuid.New()
	fake := &fakeStorage{edgesByNode: map[string][]types.KGEdge{}}
	tr := New(fake)
	e := types.KGEdge{ID: uuid.New(), Source: "A", Target: "B"}
	seeds := []storage.EdgeHit{{Edge: e, Similarity: 0.2}, {Edge: e, Similarity: 0.8}}
	hits, err := tr.Traverse(context.Background(), convID, seeds, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
