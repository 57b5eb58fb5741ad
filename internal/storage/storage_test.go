package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConversation(t *testing.T, s *SQLiteStorage) uuid.UUID {
	t.Helper()
	convID := uuid.New()
	require.NoError(t, s.UpsertConversation(context.Background(), &types.Conversation{
		ID:        convID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))
	return convID
}

func TestSQLiteStorage_MessageRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	convID := seedConversation(t, s)

	msg := &types.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		Content:        "user: how do I install the package?",
		CreatedAt:      time.Now().UTC(),
		Sequence:       0,
	}
	require.NoError(t, s.UpsertMessage(ctx, msg))

	fetched, err := s.FetchMessages(ctx, []uuid.UUID{msg.ID})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Equal(t, msg.Content, fetched[0].Content)
}

func TestSQLiteStorage_FTSSearchFindsPrefixMatch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	convID := seedConversation(t, s)

	require.NoError(t, s.UpsertMessage(ctx, &types.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		Content:        "pip install foo",
		CreatedAt:      time.Now().UTC(),
	}))
	require.NoError(t, s.UpsertMessage(ctx, &types.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		Content:        "unrelated content about cats",
		CreatedAt:      time.Now().UTC(),
	}))

	hits, err := s.FTSSearch(ctx, []string{"install", "setup"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Message.Content, "pip install foo")
}

func TestSQLiteStorage_EdgeVectorSearchRanksBySimilarity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	convID := seedConversation(t, s)

	msgID := uuid.New()
	require.NoError(t, s.UpsertMessage(ctx, &types.Message{
		ID:             msgID,
		ConversationID: convID,
		Content:        "assistant: Zapier connects your apps",
		CreatedAt:      time.Now().UTC(),
	}))

	closeEdge := &types.KGEdge{
		ID:                 uuid.New(),
		ConversationID:     convID,
		Source:             "Zapier",
		Relation:           "connects",
		Target:             "Slack",
		EvidenceMessageIDs: []uuid.UUID{msgID},
		CreatedAt:          time.Now().UTC(),
	}
	farEdge := &types.KGEdge{
		ID:                 uuid.New(),
		ConversationID:     convID,
		Source:             "unrelated",
		Relation:           "has",
		Target:             "nothing",
		EvidenceMessageIDs: []uuid.UUID{msgID},
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, s.UpsertEdge(ctx, closeEdge))
	require.NoError(t, s.UpsertEdge(ctx, farEdge))

	closeVec := unitVector(0)
	farVec := unitVector(1)
	require.NoError(t, s.UpsertEdgeEmbedding(ctx, &types.EdgeEmbedding{EdgeID: closeEdge.ID, Vector: closeVec, Model: "test", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.UpsertEdgeEmbedding(ctx, &types.EdgeEmbedding{EdgeID: farEdge.ID, Vector: farVec, Model: "test", CreatedAt: time.Now().UTC()}))

	hits, err := s.EdgeVectorSearch(ctx, closeVec, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, closeEdge.ID, hits[0].Edge.ID)
	require.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestSQLiteStorage_EdgesTouching(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	convID := seedConversation(t, s)
	msgID := uuid.New()
	require.NoError(t, s.UpsertMessage(ctx, &types.Message{ID: msgID, ConversationID: convID, Content: "x", CreatedAt: time.Now().UTC()}))

	edge := &types.KGEdge{
		ID:                 uuid.New(),
		ConversationID:     convID,
		Source:             "A",
		Relation:           "rel",
		Target:             "B",
		EvidenceMessageIDs: []uuid.UUID{msgID},
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, s.UpsertEdge(ctx, edge))

	edges, err := s.EdgesTouching(ctx, convID, "A")
	require.NoError(t, err)
	require.Len(t, edges, 1)

	edges, err = s.EdgesTouching(ctx, convID, "B")
	require.NoError(t, err)
	require.Len(t, edges, 1)

	edges, err = s.EdgesTouching(ctx, convID, "nonexistent")
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestSQLiteStorage_EdgeVectorSearchBreaksTiesByEdgeID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	convID := seedConversation(t, s)
	msgID := uuid.New()
	require.NoError(t, s.UpsertMessage(ctx, &types.Message{ID: msgID, ConversationID: convID, Content: "x", CreatedAt: time.Now().UTC()}))

	idA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idB := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	edgeA := &types.KGEdge{ID: idA, ConversationID: convID, Source: "A", Relation: "rel", Target: "B", EvidenceMessageIDs: []uuid.UUID{msgID}, CreatedAt: time.Now().UTC()}
	edgeB := &types.KGEdge{ID: idB, ConversationID: convID, Source: "C", Relation: "rel", Target: "D", EvidenceMessageIDs: []uuid.UUID{msgID}, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.UpsertEdge(ctx, edgeB))
	require.NoError(t, s.UpsertEdge(ctx, edgeA))

	vec := unitVector(0)
	require.NoError(t, s.UpsertEdgeEmbedding(ctx, &types.EdgeEmbedding{EdgeID: idA, Vector: vec, Model: "test", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.UpsertEdgeEmbedding(ctx, &types.EdgeEmbedding{EdgeID: idB, Vector: vec, Model: "test", CreatedAt: time.Now().UTC()}))

	hits, err := s.EdgeVectorSearch(ctx, vec, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.InDelta(t, hits[0].Similarity, hits[1].Similarity, 1e-9)
	require.Equal(t, idA, hits[0].Edge.ID)
	require.Equal(t, idB, hits[1].Edge.ID)
}

func unitVector(axis int) []float32 {
	v := make([]float32, types.EmbeddingDim)
	v[axis] = 1
	return v
}
