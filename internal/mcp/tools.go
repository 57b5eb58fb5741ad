package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxfabric/retrieval-engine/internal/assembler"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	convIDStr, ok := args["conversation_id"].(string)
	if !ok || convIDStr == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "conversation_id parameter is required", map[string]interface{}{
			"param":  "conversation_id",
			"reason": "missing or empty",
		})
	}
	convID, err := uuid.Parse(convIDStr)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "conversation_id must be a UUID", map[string]interface{}{
			"param": "conversation_id",
			"value": convIDStr,
		})
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	mode := types.Mode(getStringDefault(args, "retrieval_mode", string(types.ModeHybrid)))
	switch mode {
	case types.ModeHybrid, types.ModeLexical, types.ModeGraphOnly:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid retrieval_mode", map[string]interface{}{
			"param":   "retrieval_mode",
			"value":   string(mode),
			"allowed": []string{string(types.ModeHybrid), string(types.ModeLexical), string(types.ModeGraphOnly)},
		})
	}

	maxTokens := getIntDefault(args, "max_tokens", assembler.DefaultTokenBudget)
	topK := getIntDefault(args, "top_k", assembler.DefaultTopK)
	includeEdges := getBoolDefault(args, "include_kg_edges", true)

	resp, err := s.dispatcher.Dispatch(ctx, types.Request{
		ConversationID: convID,
		Query:          query,
		Mode:           mode,
		TopK:           topK,
		TokenBudget:    maxTokens,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(RetrieveContextResponse(resp, includeEdges))), nil
}

// RetrieveContextResponse builds the wire envelope for a retrieval response,
// shared by the MCP tool handler and the CLI so both entry points emit the
// same shape for the same Dispatch call.
func RetrieveContextResponse(resp *types.Response, includeEdges bool) map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, map[string]interface{}{
			"message_id":      m.MessageID.String(),
			"role":            string(m.Role),
			"content":         m.Content,
			"relevance_score": m.Score,
			"tokens":          m.Tokens,
		})
	}

	out := map[string]interface{}{
		"formatted_context": map[string]interface{}{
			"messages":              messages,
			"total_tokens_estimate": totalTokens(resp.Messages),
			"context_window_used":   resp.Stats.ContextWindowUsed,
			"unique_conversations":  resp.Stats.UniqueConversations,
		},
		"retrieval_stats": map[string]interface{}{
			"lexical_matches":       resp.Stats.LexicalCandidates,
			"edge_matches":          resp.Stats.EdgeMatches,
			"reached_edges":         resp.Stats.ReachedEdges,
			"total_unique_messages": resp.Stats.AssembledMessages,
			"retrieval_mode":        string(resp.Stats.Mode),
			"truncated_by_budget":   resp.Stats.TruncatedByBudget,
			"degraded":              resp.Stats.Degraded,
		},
		"query_duration_ms": resp.Stats.Duration.Milliseconds(),
	}

	if includeEdges {
		edges := make([]map[string]interface{}, 0, len(resp.Edges))
		for _, e := range resp.Edges {
			evidence := make([]string, 0, len(e.EvidenceMessageIDs))
			for _, id := range e.EvidenceMessageIDs {
				evidence = append(evidence, id.String())
			}
			edges = append(edges, map[string]interface{}{
				"source":               e.Source,
				"relation":             e.Relation,
				"target":               e.Target,
				"evidence_message_ids": evidence,
			})
		}
		out["knowledge_graph_edges"] = edges
	}

	return out
}

func totalTokens(messages []types.ContextMessage) int {
	total := 0
	for _, m := range messages {
		total += m.Tokens
	}
	return total
}

// handleGetIndexStatus handles the get_index_status tool invocation
func (s *Server) handleGetIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(indexStatusResponse(status))), nil
}

func indexStatusResponse(status storage.Status) map[string]interface{} {
	return map[string]interface{}{
		"schema_version": status.SchemaVersion,
		"statistics": map[string]interface{}{
			"conversations":   status.Conversations,
			"messages":        status.Messages,
			"kg_nodes":        status.Nodes,
			"kg_edges":        status.Edges,
			"edge_embeddings": status.EdgeEmbeddings,
			"database_bytes":  status.DatabaseBytes,
		},
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
