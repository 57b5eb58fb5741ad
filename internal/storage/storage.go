// Package storage implements the storage adapter: the operations the
// retrieval pipeline needs (full-text search, edge vector search, edge
// traversal, message fetch) plus the write-side operations needed to seed a
// corpus, behind a Storage interface with one SQLite-backed implementation.
package storage

import (
	"context"
	"database/sql"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// LexicalHit is one row returned by FTSSearch.
type LexicalHit struct {
	Message types.Message
	Score   float64 // higher is better, already normalized from the FTS5 bm25() rank
}

// EdgeHit is one row returned by EdgeVectorSearch.
type EdgeHit struct {
	Edge       types.KGEdge
	Similarity float64 // cosine similarity in [-1, 1], clamped to [0, 1] for display
}

// Storage is the persistence boundary the retrieval pipeline depends on.
// SQLiteStorage is the only implementation; the interface exists so tests can
// substitute an in-memory fake without a real database.
type Storage interface {
	// FTSSearch runs the prefix-wildcard OR query built from an expanded
	// keyword set against message content.
	FTSSearch(ctx context.Context, terms []string, limit int) ([]LexicalHit, error)

	// EdgeVectorSearch returns the top-k edges by cosine similarity to
	// queryVec, scanning edges across all conversations.
	EdgeVectorSearch(ctx context.Context, queryVec []float32, limit int) ([]EdgeHit, error)

	// EdgesTouching returns every edge in conversationID whose source or
	// target equals nodeID.
	EdgesTouching(ctx context.Context, conversationID uuid.UUID, nodeID string) ([]types.KGEdge, error)

	// FetchMessages returns the messages identified by ids, in the order the
	// ids were given.
	FetchMessages(ctx context.Context, ids []uuid.UUID) ([]types.Message, error)

	// UpsertConversation, UpsertMessage, UpsertNode, UpsertEdge, and
	// UpsertEdgeEmbedding seed the corpus. Ingestion proper is out of scope;
	// these exist because the retrieval pipeline has to be tested against a
	// populated store.
	UpsertConversation(ctx context.Context, conv *types.Conversation) error
	UpsertMessage(ctx context.Context, msg *types.Message) error
	UpsertNode(ctx context.Context, node *types.KGNode) error
	UpsertEdge(ctx context.Context, edge *types.KGEdge) error
	UpsertEdgeEmbedding(ctx context.Context, emb *types.EdgeEmbedding) error

	// Status reports corpus size, used by the MCP get_index_status tool.
	Status(ctx context.Context) (Status, error)

	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a Storage bound to an in-flight transaction.
type Tx interface {
	Storage
	Commit() error
	Rollback() error
}

// Status summarizes corpus size for operational visibility.
type Status struct {
	Conversations int64
	Messages      int64
	Nodes         int64
	Edges         int64
	EdgeEmbeddings int64
	DatabaseBytes int64
	SchemaVersion string
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// "...WithQuerier" helper run either directly against the database or inside
// a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
