package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ctxfabric/retrieval-engine/internal/config"
	"github.com/ctxfabric/retrieval-engine/internal/embedder"
	"github.com/ctxfabric/retrieval-engine/internal/retrieval"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
)

const (
	// ServerName is the MCP server name.
	ServerName = "retrieval-engine"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp        *server.MCPServer
	storage    storage.Storage
	embedder   embedder.Embedder
	dispatcher *retrieval.Dispatcher
}

// NewServer creates a new MCP server instance using cfg for storage and
// embedding-service configuration.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	emb := embedder.NewHTTPProvider(cfg.EmbeddingURL, cfg.EmbeddingTimeout, embedder.NewCache(cfg.EmbeddingCacheSize))

	dispatcher := retrieval.New(store, emb, retrieval.Options{
		HybridSemaphoreSize: cfg.HybridSemaphoreSize,
		QueryCacheSize:      cfg.QueryCacheSize,
		QueryCacheTTL:       cfg.QueryCacheTTL,
		RequestDeadline:     cfg.RequestDeadline,
	})

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:        mcpServer,
		storage:    store,
		embedder:   emb,
		dispatcher: dispatcher,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	defer func() { _ = s.embedder.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() error {
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(getIndexStatusTool(), s.handleGetIndexStatus)
	return nil
}

