// Package embedder calls the embedding service the retrieval engine depends
// on for turning query text into vectors. It is intentionally thin: one
// HTTP contract (POST /embedding), one retry (100ms fixed backoff, once),
// one content-hash-keyed cache.
package embedder
