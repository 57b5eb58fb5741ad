package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ctxfabric/retrieval-engine/internal/config"
	"github.com/ctxfabric/retrieval-engine/internal/embedder"
	"github.com/ctxfabric/retrieval-engine/internal/mcp"
	"github.com/ctxfabric/retrieval-engine/internal/retrieval"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:     "retrieveengine",
		Short:   "Hybrid lexical/graph conversation retrieval engine",
		Version: version,
	}
	root.AddCommand(serveCmd(), queryCmd(), ingestStatusCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			slog.Info("starting mcp server", "db_path", cfg.DBPath, "embedding_url", cfg.EmbeddingURL)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			srv, err := mcp.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create mcp server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				slog.Info("mcp server ready, listening on stdio")
				errChan <- srv.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				slog.Info("received signal, shutting down", "signal", sig.String())
				cancel()
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}
			slog.Info("server stopped")
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	var conversationID, query, mode string
	var topK, maxTokens int
	var includeEdges bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a one-shot retrieval against the local corpus and print the JSON result",
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := uuid.Parse(conversationID)
			if err != nil {
				return fmt.Errorf("invalid --conversation: %w", err)
			}

			cfg := config.FromEnv()
			ctx := context.Background()

			store, err := storage.NewSQLiteStorage(ctx, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			emb := embedder.NewHTTPProvider(cfg.EmbeddingURL, cfg.EmbeddingTimeout, embedder.NewCache(cfg.EmbeddingCacheSize))
			defer emb.Close()

			dispatcher := retrieval.New(store, emb, retrieval.Options{
				HybridSemaphoreSize: cfg.HybridSemaphoreSize,
				QueryCacheSize:      cfg.QueryCacheSize,
				QueryCacheTTL:       cfg.QueryCacheTTL,
				RequestDeadline:     cfg.RequestDeadline,
			})

			resp, err := dispatcher.Dispatch(ctx, types.Request{
				ConversationID: convID,
				Query:          query,
				Mode:           types.Mode(mode),
				TopK:           topK,
				TokenBudget:    maxTokens,
			})
			if err != nil {
				return fmt.Errorf("dispatch query: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(mcp.RetrieveContextResponse(resp, includeEdges))
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation UUID to scope the query to")
	cmd.Flags().StringVar(&query, "q", "", "query text")
	cmd.Flags().StringVar(&mode, "mode", string(types.ModeHybrid), "retrieval mode: hybrid, lexical_only, graph_only")
	cmd.Flags().IntVar(&topK, "top-k", 5, "maximum number of messages to return")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget for the assembled context (0 uses the default)")
	cmd.Flags().BoolVar(&includeEdges, "include-edges", true, "include knowledge graph edges in the output")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("q")

	return cmd
}

func ingestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-status",
		Short: "Report corpus size and schema status for the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := context.Background()

			store, err := storage.NewSQLiteStorage(ctx, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			status, err := store.Status(ctx)
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}
