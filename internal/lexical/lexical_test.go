package lexical

import (
	"context"
	"testing"

	"github.com/ctxfabric/retrieval-engine/internal/keyword"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	storage.Storage
	hits []storage.LexicalHit
	err  error
	gotTerms []string
}

func (f *fakeStorage) FTSSearch(ctx context.Context, terms []string, limit int) ([]storage.LexicalHit, error) {
	f.gotTerms = terms
	return f.hits, f.err
}

func TestSearcher_Search_PassesExpandedTerms(t *testing.T) {
	fake := &fakeStorage{hits: []storage.LexicalHit{{Score: 0.9}}}
	s := New(fake)

	fp, err := keyword.Analyze("install package")
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), fp, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NotEmpty(t, fake.gotTerms)
}
