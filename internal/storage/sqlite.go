package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// SQLiteStorage is the sole Storage implementation, backed by either the cgo
// or pure-Go SQLite driver depending on build tags (build_cgo.go /
// build_purego.go).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens path (or ":memory:") with DriverName and applies
// every pending migration.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", DriverName, err)
	}
	// SQLite allows only one writer at a time; serialize through a single
	// connection so writes never collide with WAL-mode's own locking.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set foreign_keys: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStorage) Close() error { return s.db.Close() }

// BeginTx starts a transaction-scoped Storage.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// ---- read path ----

func (s *SQLiteStorage) FTSSearch(ctx context.Context, terms []string, limit int) ([]LexicalHit, error) {
	return ftsSearchWithQuerier(ctx, s.db, terms, limit)
}

func (s *SQLiteStorage) EdgeVectorSearch(ctx context.Context, queryVec []float32, limit int) ([]EdgeHit, error) {
	return edgeVectorSearchWithQuerier(ctx, s.db, queryVec, limit)
}

func (s *SQLiteStorage) EdgesTouching(ctx context.Context, conversationID uuid.UUID, nodeID string) ([]types.KGEdge, error) {
	return edgesTouchingWithQuerier(ctx, s.db, conversationID, nodeID)
}

func (s *SQLiteStorage) FetchMessages(ctx context.Context, ids []uuid.UUID) ([]types.Message, error) {
	return fetchMessagesWithQuerier(ctx, s.db, ids)
}

func (s *SQLiteStorage) Status(ctx context.Context) (Status, error) {
	return statusWithQuerier(ctx, s.db)
}

// ---- write path ----

func (s *SQLiteStorage) UpsertConversation(ctx context.Context, conv *types.Conversation) error {
	return upsertConversationWithQuerier(ctx, s.db, conv)
}

func (s *SQLiteStorage) UpsertMessage(ctx context.Context, msg *types.Message) error {
	return upsertMessageWithQuerier(ctx, s.db, msg)
}

func (s *SQLiteStorage) UpsertNode(ctx context.Context, node *types.KGNode) error {
	return upsertNodeWithQuerier(ctx, s.db, node)
}

func (s *SQLiteStorage) UpsertEdge(ctx context.Context, edge *types.KGEdge) error {
	return upsertEdgeWithQuerier(ctx, s.db, edge)
}

func (s *SQLiteStorage) UpsertEdgeEmbedding(ctx context.Context, emb *types.EdgeEmbedding) error {
	return upsertEdgeEmbeddingWithQuerier(ctx, s.db, emb)
}

// ---- sqliteTx ----

// sqliteTx wraps a *sql.Tx and delegates every Storage method back to the
// same "...WithQuerier" helpers the direct-DB path uses.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
func (t *sqliteTx) Close() error    { return fmt.Errorf("Close is not valid on a transaction; call Commit or Rollback") }

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTx) FTSSearch(ctx context.Context, terms []string, limit int) ([]LexicalHit, error) {
	return ftsSearchWithQuerier(ctx, t.tx, terms, limit)
}

func (t *sqliteTx) EdgeVectorSearch(ctx context.Context, queryVec []float32, limit int) ([]EdgeHit, error) {
	return edgeVectorSearchWithQuerier(ctx, t.tx, queryVec, limit)
}

func (t *sqliteTx) EdgesTouching(ctx context.Context, conversationID uuid.UUID, nodeID string) ([]types.KGEdge, error) {
	return edgesTouchingWithQuerier(ctx, t.tx, conversationID, nodeID)
}

func (t *sqliteTx) FetchMessages(ctx context.Context, ids []uuid.UUID) ([]types.Message, error) {
	return fetchMessagesWithQuerier(ctx, t.tx, ids)
}

func (t *sqliteTx) Status(ctx context.Context) (Status, error) {
	return statusWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) UpsertConversation(ctx context.Context, conv *types.Conversation) error {
	return upsertConversationWithQuerier(ctx, t.tx, conv)
}

func (t *sqliteTx) UpsertMessage(ctx context.Context, msg *types.Message) error {
	return upsertMessageWithQuerier(ctx, t.tx, msg)
}

func (t *sqliteTx) UpsertNode(ctx context.Context, node *types.KGNode) error {
	return upsertNodeWithQuerier(ctx, t.tx, node)
}

func (t *sqliteTx) UpsertEdge(ctx context.Context, edge *types.KGEdge) error {
	return upsertEdgeWithQuerier(ctx, t.tx, edge)
}

func (t *sqliteTx) UpsertEdgeEmbedding(ctx context.Context, emb *types.EdgeEmbedding) error {
	return upsertEdgeEmbeddingWithQuerier(ctx, t.tx, emb)
}

// ---- shared WithQuerier helpers ----

func upsertConversationWithQuerier(ctx context.Context, q querier, conv *types.Conversation) error {
	if conv.ID == uuid.Nil {
		return fmt.Errorf("%w: conversation id is nil", types.ErrIntegrityViolation)
	}
	now := conv.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversations(id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, conv.ID.String(), now, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func upsertMessageWithQuerier(ctx context.Context, q querier, msg *types.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages(id, conversation_id, content, created_at, sequence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, sequence = excluded.sequence
	`, msg.ID.String(), msg.ConversationID.String(), msg.Content, msg.CreatedAt, msg.Sequence)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

func upsertNodeWithQuerier(ctx context.Context, q querier, node *types.KGNode) error {
	if node.ID == "" || node.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: node is missing id or conversation id", types.ErrIntegrityViolation)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO kg_nodes(conversation_id, node_id, node_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, node_id) DO UPDATE SET node_type = excluded.node_type
	`, node.ConversationID.String(), node.ID, node.NodeType, node.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

func upsertEdgeWithQuerier(ctx context.Context, q querier, edge *types.KGEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO kg_edges(id, conversation_id, source, relation, target, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET source = excluded.source, relation = excluded.relation, target = excluded.target
	`, edge.ID.String(), edge.ConversationID.String(), edge.Source, edge.Relation, edge.Target, edge.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM kg_edge_evidence WHERE edge_id = ?`, edge.ID.String()); err != nil {
		return fmt.Errorf("clear edge evidence: %w", err)
	}
	for _, mid := range edge.EvidenceMessageIDs {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO kg_edge_evidence(edge_id, message_id) VALUES (?, ?)
			ON CONFLICT(edge_id, message_id) DO NOTHING
		`, edge.ID.String(), mid.String()); err != nil {
			return fmt.Errorf("insert edge evidence: %w", err)
		}
	}
	return nil
}

func upsertEdgeEmbeddingWithQuerier(ctx context.Context, q querier, emb *types.EdgeEmbedding) error {
	if emb.EdgeID == uuid.Nil {
		return fmt.Errorf("%w: edge embedding has nil edge id", types.ErrIntegrityViolation)
	}
	if len(emb.Vector) != types.EmbeddingDim {
		return fmt.Errorf("%w: edge embedding has dimension %d, want %d", types.ErrIntegrityViolation, len(emb.Vector), types.EmbeddingDim)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO kg_edge_embeddings(edge_id, vector, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(edge_id) DO UPDATE SET vector = excluded.vector, model = excluded.model
	`, emb.EdgeID.String(), serializeVector(emb.Vector), emb.Model, emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert edge embedding: %w", err)
	}
	return nil
}

func ftsSearchWithQuerier(ctx context.Context, q querier, terms []string, limit int) ([]LexicalHit, error) {
	query := buildPrefixOrQuery(terms)
	if query == "" {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.content, m.created_at, m.sequence, bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank ASC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var (
			idStr, convStr string
			msg            types.Message
			rank           float64
		)
		if err := rows.Scan(&idStr, &convStr, &msg.Content, &msg.CreatedAt, &msg.Sequence, &rank); err != nil {
			return nil, fmt.Errorf("scan fts row: %w", err)
		}
		if msg.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		if msg.ConversationID, err = uuid.Parse(convStr); err != nil {
			return nil, fmt.Errorf("parse conversation id: %w", err)
		}
		hits = append(hits, LexicalHit{Message: msg, Score: normalizeBM25(rank)})
	}
	return hits, rows.Err()
}

func edgeVectorSearchWithQuerier(ctx context.Context, q querier, queryVec []float32, limit int) ([]EdgeHit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.id, e.conversation_id, e.source, e.relation, e.target, e.created_at, emb.vector
		FROM kg_edge_embeddings emb
		JOIN kg_edges e ON e.id = emb.edge_id
	`)
	if err != nil {
		return nil, fmt.Errorf("edge vector scan: %w", err)
	}
	defer rows.Close()

	type row struct {
		edge types.KGEdge
		vec  []float32
	}
	var all []row
	for rows.Next() {
		var (
			idStr, convStr string
			edge           types.KGEdge
			blob           []byte
		)
		if err := rows.Scan(&idStr, &convStr, &edge.Source, &edge.Relation, &edge.Target, &edge.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scan edge vector row: %w", err)
		}
		if edge.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse edge id: %w", err)
		}
		if edge.ConversationID, err = uuid.Parse(convStr); err != nil {
			return nil, fmt.Errorf("parse conversation id: %w", err)
		}
		vec, err := deserializeVector(blob)
		if err != nil {
			return nil, err
		}
		all = append(all, row{edge: edge, vec: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hits := make([]EdgeHit, 0, len(all))
	for _, r := range all {
		hits = append(hits, EdgeHit{Edge: r.edge, Similarity: cosineSimilarity(queryVec, r.vec)})
	}
	sortEdgeHits(hits)
	if err := attachEvidence(ctx, q, hits); err != nil {
		return nil, err
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sortEdgeHits(hits []EdgeHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Edge.ID.String() < hits[j].Edge.ID.String()
	})
}

func attachEvidence(ctx context.Context, q querier, hits []EdgeHit) error {
	for i := range hits {
		ids, err := evidenceForEdge(ctx, q, hits[i].Edge.ID)
		if err != nil {
			return err
		}
		hits[i].Edge.EvidenceMessageIDs = ids
	}
	return nil
}

func evidenceForEdge(ctx context.Context, q querier, edgeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, `SELECT message_id FROM kg_edge_evidence WHERE edge_id = ?`, edgeID.String())
	if err != nil {
		return nil, fmt.Errorf("fetch edge evidence: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func edgesTouchingWithQuerier(ctx context.Context, q querier, conversationID uuid.UUID, nodeID string) ([]types.KGEdge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, source, relation, target, created_at
		FROM kg_edges
		WHERE conversation_id = ? AND (source = ? OR target = ?)
	`, conversationID.String(), nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("edges touching: %w", err)
	}
	defer rows.Close()

	var edges []types.KGEdge
	for rows.Next() {
		var idStr string
		edge := types.KGEdge{ConversationID: conversationID}
		if err := rows.Scan(&idStr, &edge.Source, &edge.Relation, &edge.Target, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edges touching row: %w", err)
		}
		if edge.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse edge id: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachEvidenceToEdges(ctx, q, edges); err != nil {
		return nil, err
	}
	return edges, nil
}

func attachEvidenceToEdges(ctx context.Context, q querier, edges []types.KGEdge) error {
	for i := range edges {
		ids, err := evidenceForEdge(ctx, q, edges[i].ID)
		if err != nil {
			return err
		}
		edges[i].EvidenceMessageIDs = ids
	}
	return nil
}

func fetchMessagesWithQuerier(ctx context.Context, q querier, ids []uuid.UUID) ([]types.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	query := fmt.Sprintf(`
		SELECT id, conversation_id, content, created_at, sequence
		FROM messages
		WHERE id IN (%s)
	`, strings.Join(placeholders, ","))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]types.Message, len(ids))
	for rows.Next() {
		var idStr, convStr string
		msg := types.Message{}
		if err := rows.Scan(&idStr, &convStr, &msg.Content, &msg.CreatedAt, &msg.Sequence); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if msg.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if msg.ConversationID, err = uuid.Parse(convStr); err != nil {
			return nil, err
		}
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's requested order rather than scan order.
	ordered := make([]types.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := byID[id]; ok {
			ordered = append(ordered, msg)
		}
	}
	return ordered, nil
}

func statusWithQuerier(ctx context.Context, q querier) (Status, error) {
	var st Status
	st.SchemaVersion = CurrentSchemaVersion
	counts := []struct {
		table string
		dest  *int64
	}{
		{"conversations", &st.Conversations},
		{"messages", &st.Messages},
		{"kg_nodes", &st.Nodes},
		{"kg_edges", &st.Edges},
		{"kg_edge_embeddings", &st.EdgeEmbeddings},
	}
	for _, c := range counts {
		row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table))
		if err := row.Scan(c.dest); err != nil {
			return Status{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	row := q.QueryRowContext(ctx, `SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&st.DatabaseBytes); err != nil {
		return Status{}, fmt.Errorf("database size: %w", err)
	}
	return st, nil
}
