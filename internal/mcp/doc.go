// Package mcp implements the Model Context Protocol (MCP) server exposing
// conversation retrieval to AI coding assistants and other MCP clients.
//
// The server exposes two tools:
//   - retrieve_context: Run a hybrid lexical/graph retrieval for a query and
//     return a token-budgeted, ranked context.
//   - get_index_status: Report corpus size and schema status.
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	retrieveengine serve
//
// It listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: retrieve_context
//
// Retrieve relevant messages and contributing knowledge-graph edges for a query:
//
//	Request:
//	{
//	  "name": "retrieve_context",
//	  "arguments": {
//	    "conversation_id": "b3f1c9e0-6b8e-4a2e-9a0d-7b1a2c3d4e5f",
//	    "query": "how did we configure the retry backoff",
//	    "top_k": 5,
//	    "retrieval_mode": "hybrid",
//	    "max_tokens": 2000,
//	    "include_kg_edges": true
//	  }
//	}
//
//	Response:
//	{
//	  "formatted_context": {
//	    "messages": [
//	      {
//	        "message_id": "c1a2...",
//	        "role": "assistant",
//	        "content": "we set the retry backoff to exponential with a 30s cap",
//	        "relevance_score": 3.42,
//	        "tokens": 17
//	      }
//	    ],
//	    "total_tokens_estimate": 17,
//	    "unique_conversations": 1
//	  },
//	  "knowledge_graph_edges": [
//	    {
//	      "source": "retry_backoff",
//	      "relation": "configured_as",
//	      "target": "exponential_30s_cap",
//	      "evidence_message_ids": ["c1a2..."]
//	    }
//	  ],
//	  "retrieval_stats": {
//	    "lexical_matches": 4,
//	    "edge_matches": 2,
//	    "total_unique_messages": 1,
//	    "truncated_by_budget": false,
//	    "degraded": false
//	  },
//	  "query_duration_ms": 12
//	}
//
// retrieval_mode selects which pathways run: "hybrid" (default), "lexical_only",
// or "graph_only". degraded is true when one hybrid pathway failed with a
// transport or timeout error but the other produced results.
//
// # Tool: get_index_status
//
// Report corpus size and schema status:
//
//	Request:
//	{
//	  "name": "get_index_status",
//	  "arguments": {}
//	}
//
//	Response:
//	{
//	  "schema_version": "1.0.0",
//	  "statistics": {
//	    "conversations": 12,
//	    "messages": 4310,
//	    "kg_nodes": 890,
//	    "kg_edges": 1205,
//	    "edge_embeddings": 1205,
//	    "database_bytes": 18874368
//	  }
//	}
//
// # MCP Client Configuration
//
// Configure in an MCP client's settings:
//
//	{
//	  "mcpServers": {
//	    "retrieval-engine": {
//	      "command": "/usr/local/bin/retrieveengine",
//	      "args": ["serve"],
//	      "env": {
//	        "RETRIEVALENGINE_DB_PATH": "/var/lib/retrieval-engine/retrieval.db",
//	        "RETRIEVALENGINE_EMBEDDING_URL": "http://localhost:8081"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// The MCP server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32004,
//	    "message": "query parameter is required and cannot be empty",
//	    "data": {
//	      "param": "query"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (storage, embedding service, etc.)
//   - -32004: Empty query
//
// # Implementation Details
//
// The package uses github.com/mark3labs/mcp-go for protocol implementation:
//
//	mcpServer := server.NewMCPServer(ServerName, ServerVersion)
//	mcpServer.AddTool(retrieveContextTool(), s.handleRetrieveContext)
//	mcpServer.AddTool(getIndexStatusTool(), s.handleGetIndexStatus)
//	server.ServeStdio(mcpServer)
//
// Tool handlers extract arguments from the untyped request map, build a
// types.Request, dispatch it through the retrieval.Dispatcher, and translate
// the resulting types.Response into the wire JSON shape shown above.
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol):
//
//	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
//	slog.Info("mcp server ready, listening on stdio")
//
// # Testing
//
// Tool handlers are tested directly on a Server built by NewServer over an
// in-memory SQLite database, without starting an actual stdio transport.
package mcp
