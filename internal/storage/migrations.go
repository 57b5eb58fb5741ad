package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion is the schema version this binary expects, tracked
// in the schema_version table.
const CurrentSchemaVersion = "1.0.0"

// Migration is one forward/backward schema step.
type Migration struct {
	Version     string
	Description string
	Up          string
	Down        string
}

// AllMigrations is the ordered list of migrations applied on open.
var AllMigrations = []Migration{
	{
		Version:     "1.0.0",
		Description: "initial schema: conversations, messages, messages_fts, kg_nodes, kg_edges, kg_edge_evidence, kg_edge_embeddings",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
	version TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	sequence INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sequence);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	content,
	content='messages',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;
CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	INSERT INTO messages_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TABLE IF NOT EXISTS kg_nodes (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	node_type TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (conversation_id, node_id)
);

CREATE TABLE IF NOT EXISTS kg_edges (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	relation TEXT NOT NULL,
	target TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kg_edges_conversation ON kg_edges(conversation_id);
CREATE INDEX IF NOT EXISTS idx_kg_edges_source ON kg_edges(conversation_id, source);
CREATE INDEX IF NOT EXISTS idx_kg_edges_target ON kg_edges(conversation_id, target);

CREATE TABLE IF NOT EXISTS kg_edge_evidence (
	edge_id TEXT NOT NULL REFERENCES kg_edges(id) ON DELETE CASCADE,
	message_id TEXT NOT NULL,
	PRIMARY KEY (edge_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_kg_edge_evidence_message ON kg_edge_evidence(message_id);

CREATE TABLE IF NOT EXISTS kg_edge_embeddings (
	edge_id TEXT PRIMARY KEY REFERENCES kg_edges(id) ON DELETE CASCADE,
	vector BLOB NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS kg_edge_embeddings;
DROP TABLE IF EXISTS kg_edge_evidence;
DROP INDEX IF EXISTS idx_kg_edges_target;
DROP INDEX IF EXISTS idx_kg_edges_source;
DROP INDEX IF EXISTS idx_kg_edges_conversation;
DROP TABLE IF EXISTS kg_edges;
DROP TABLE IF EXISTS kg_nodes;
DROP TRIGGER IF EXISTS messages_au;
DROP TRIGGER IF EXISTS messages_ad;
DROP TRIGGER IF EXISTS messages_ai;
DROP TABLE IF EXISTS messages_fts;
DROP INDEX IF EXISTS idx_messages_conversation;
DROP TABLE IF EXISTS messages;
DROP TABLE IF EXISTS conversations;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations brings db up to CurrentSchemaVersion, applying every
// migration whose version is newer than the latest recorded row in
// schema_version, using semver comparison so migrations can be applied
// out of lexical order.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := latestAppliedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("migration %s has invalid version: %w", m.Version, err)
		}
		if current != nil && !v.GreaterThan(current) {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// RollbackMigration reverts the single named migration.
func RollbackMigration(ctx context.Context, db *sql.DB, version string) error {
	for _, m := range AllMigrations {
		if m.Version != version {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Down); err != nil {
			return fmt.Errorf("rollback migration %s: %w", version, err)
		}
		_, err := db.ExecContext(ctx, `DELETE FROM schema_version WHERE version = ?`, version)
		return err
	}
	return fmt.Errorf("unknown migration version %q", version)
}

func latestAppliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	var latest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan schema_version row: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, rows.Err()
}
