package fusion

import (
	"testing"

	"github.com/ctxfabric/retrieval-engine/internal/graph"
	"github.com/ctxfabric/retrieval-engine/internal/keyword"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAnalyze(t *testing.T, q string) *types.Fingerprint {
	t.Helper()
	fp, err := keyword.Analyze(q)
	require.NoError(t, err)
	return fp
}

func TestRank_LexicalOnlyCandidateSurvives(t *testing.T) {
	fp := mustAnalyze(t, "install package")
	convID := uuid.New()
	msg := types.Message{ID: uuid.New(), ConversationID: convID, Content: "user: pip install foo"}

	cands, err := Rank(fp, []storage.LexicalHit{{Message: msg, Score: 0.8}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.True(t, cands[0].Provenance.Lexical)
	assert.False(t, cands[0].Provenance.Graph)
	assert.Greater(t, cands[0].FinalScore, 0.0)
}

func TestRank_GraphOnlyCandidateFetchedAndScored(t *testing.T) {
	fp := mustAnalyze(t, "install package")
	convID := uuid.New()
	mid := uuid.New()
	msg := types.Message{ID: mid, ConversationID: convID, Content: "assistant: run brew install bar"}

	edge := types.KGEdge{ID: uuid.New(), ConversationID: convID, Source: "user", Relation: "runs", Target: "install", EvidenceMessageIDs: []uuid.UUID{mid}}
	hops := []graph.HopEdge{{Edge: edge, Hop: 1, SeedSimilarity: 0.9}}

	fetchCalled := false
	fetch := func(ids []uuid.UUID) ([]types.Message, error) {
		fetchCalled = true
		require.Len(t, ids, 1)
		assert.Equal(t, mid, ids[0])
		return []types.Message{msg}, nil
	}

	cands, err := Rank(fp, nil, hops, fetch)
	require.NoError(t, err)
	require.True(t, fetchCalled)
	require.Len(t, cands, 1)
	assert.False(t, cands[0].Provenance.Lexical)
	assert.True(t, cands[0].Provenance.Graph)
	assert.Equal(t, 1, cands[0].Hop)
	assert.InDelta(t, 0.9*0.5, cands[0].VecScore, 1e-9)
}

func TestRank_MixedCandidateOutranksSingleProvenance(t *testing.T) {
	fp := mustAnalyze(t, "install package")
	convID := uuid.New()
	midMixed := uuid.New()
	midLexOnly := uuid.New()

	lexHit := storage.LexicalHit{
		Message: types.Message{ID: midMixed, ConversationID: convID, Content: "user: install package now"},
		Score:   0.3,
	}
	lexOnly := storage.LexicalHit{
		Message: types.Message{ID: midLexOnly, ConversationID: convID, Content: "user: install package later"},
		Score:   0.3,
	}
	edge := types.KGEdge{ID: uuid.New(), ConversationID: convID, Source: "a", Relation: "b", Target: "c", EvidenceMessageIDs: []uuid.UUID{midMixed}}
	hops := []graph.HopEdge{{Edge: edge, Hop: 0, SeedSimilarity: 0.95}}

	cands, err := Rank(fp, []storage.LexicalHit{lexHit, lexOnly}, hops, nil)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, midMixed, cands[0].Message.ID)
}

func TestRank_IrrelevantGraphEvidenceDropped(t *testing.T) {
	fp := mustAnalyze(t, "install package")
	convID := uuid.New()
	mid := uuid.New()
	msg := types.Message{ID: mid, ConversationID: convID, Content: "the weather today is sunny"}
	edge := types.KGEdge{ID: uuid.New(), ConversationID: convID, Source: "a", Relation: "b", Target: "c", EvidenceMessageIDs: []uuid.UUID{mid}}
	hops := []graph.HopEdge{{Edge: edge, Hop: 0, SeedSimilarity: 0.9}}

	fetch := func(ids []uuid.UUID) ([]types.Message, error) {
		return []types.Message{msg}, nil
	}

	cands, err := Rank(fp, nil, hops, fetch)
	require.NoError(t, err)
	assert.Empty(t, cands)
}
