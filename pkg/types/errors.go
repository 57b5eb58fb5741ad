package types

import "errors"

// Sentinel errors for the five error kinds of the retrieval pipeline.
// Callers check with errors.Is/errors.As, never string matching.
var (
	// ErrInvalidQuery marks a malformed or empty query (e.g. no keyword
	// survives tokenization).
	ErrInvalidQuery = errors.New("invalid query")

	// ErrTransport marks a failure reaching an external collaborator
	// (the embedding service).
	ErrTransport = errors.New("transport error")

	// ErrTimeout marks a per-request deadline exceeded before completion.
	ErrTimeout = errors.New("timeout")

	// ErrIntegrityViolation marks persisted data that violates a model
	// invariant (e.g. an edge with no evidence messages).
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrCancelled marks a request cancelled by its caller.
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound marks a lookup that found no matching row.
	ErrNotFound = errors.New("not found")
)
