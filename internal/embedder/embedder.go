// Package embedder is the retrieval pipeline's external collaborator: it
// turns query text into the 768-dim vector the vector searcher needs, over
// a single HTTP contract (POST /embedding).
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors.
var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrProviderFailed = errors.New("embedding provider failed")
	ErrWrongDimension = errors.New("embedding response has wrong dimension")
)

// Embedding is a generated vector with its provenance.
type Embedding struct {
	Vector []float32
	Model  string
	Hash   string // content hash of the embedded text, used as the cache key
}

// Embedder generates query embeddings.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) (*Embedding, error)
	Close() error
}

// Cache is an LRU cache of embeddings keyed by the SHA-256 hash of the exact
// text, so requests in different retrieval modes for the same text share a
// cache entry; texts that differ only in case get separate entries.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates an embedding cache holding up to maxLen entries.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a deep copy of the cached embedding, if present, so callers
// can never mutate the cached vector.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)
	return &Embedding{Vector: vectorCopy, Model: emb.Model, Hash: emb.Hash}, true
}

// Set stores emb under hash, evicting the least-recently-used entry if the
// cache is full.
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the number of cached entries.
func (c *Cache) Size() int { return c.cache.Len() }

// Clear empties the cache.
func (c *Cache) Clear() { c.cache.Purge() }

// ComputeHash computes the SHA-256 hex digest of text, used as the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateText rejects an empty embedding request.
func validateText(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	return nil
}

func dimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, got, want)
}
