package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// retrieveContextTool returns the tool definition for retrieve_context.
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve relevant conversation context and knowledge-graph evidence for a query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the conversation to scope graph traversal to",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of messages to return",
					"default":     5,
					"minimum":     1,
				},
				"retrieval_mode": map[string]interface{}{
					"type":        "string",
					"description": "Which pathways to run",
					"enum":        []string{"hybrid", "lexical_only", "graph_only"},
					"default":     "hybrid",
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget for the assembled context",
					"default":     2000,
					"minimum":     1,
				},
				"include_kg_edges": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether to include contributing knowledge-graph edges in the response",
					"default":     true,
				},
			},
			Required: []string{"conversation_id", "query"},
		},
	}
}

// getIndexStatusTool returns the tool definition for get_index_status.
func getIndexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_index_status",
		Description: "Report corpus size and schema status for the retrieval store",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
