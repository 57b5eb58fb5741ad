// Package vector embeds the query text, then returns the top-k
// knowledge-graph edges by cosine similarity to that embedding.
package vector

import (
	"context"
	"fmt"

	"github.com/ctxfabric/retrieval-engine/internal/embedder"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
)

// Searcher runs the dense-vector pathway.
type Searcher struct {
	store    storage.Storage
	embedder embedder.Embedder
}

// New builds a Searcher over store and embedder.
func New(store storage.Storage, e embedder.Embedder) *Searcher {
	return &Searcher{store: store, embedder: e}
}

// Search embeds query and returns up to limit edges ranked by cosine
// similarity, highest first; ties are broken by the storage adapter on edge
// identifier.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]storage.EdgeHit, error) {
	emb, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vector search: embed query: %w", err)
	}
	hits, err := s.store.EdgeVectorSearch(ctx, emb.Vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
