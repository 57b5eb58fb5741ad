// Package storage implements the persistence layer for conversations,
// messages, and per-conversation knowledge graphs.
//
// # Schema
//
// conversations, messages (with a content-synced messages_fts FTS5 virtual
// table for lexical search), kg_nodes, kg_edges, kg_edge_evidence (the
// many-to-many link between an edge and the messages it was derived from),
// and kg_edge_embeddings (one 768-dim vector per edge, stored as a
// little-endian float32 BLOB).
//
// # Driver selection
//
// Building with the sqlite_vec tag (and CGO_ENABLED=1) links
// github.com/mattn/go-sqlite3; otherwise github.com/mattn/go-sqlite3 is
// replaced by the pure-Go modernc.org/sqlite driver. Either way,
// EdgeVectorSearch currently always scores similarity in Go
// (vector_ops.go's cosineSimilarity) since neither driver ships a cosine SQL
// function out of the box; VectorExtensionAvailable is exposed for a future
// SQL-side fast path.
package storage
