// Package lexical implements a prefix-wildcard, OR-combined full-text
// search over message content, built from a query fingerprint's expanded
// keyword set.
package lexical

import (
	"context"
	"fmt"

	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
)

// Searcher runs the lexical pathway against a Storage.
type Searcher struct {
	store storage.Storage
}

// New builds a Searcher over store.
func New(store storage.Storage) *Searcher {
	return &Searcher{store: store}
}

// Search returns up to limit messages whose content matches any of fp's
// expanded keywords as a prefix, ranked by the storage adapter's bm25-based
// score.
func (s *Searcher) Search(ctx context.Context, fp *types.Fingerprint, limit int) ([]storage.LexicalHit, error) {
	terms := fp.ExpandedTerms()
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: fingerprint has no expanded keywords", types.ErrInvalidQuery)
	}
	hits, err := s.store.FTSSearch(ctx, terms, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return hits, nil
}
