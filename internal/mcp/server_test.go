package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxfabric/retrieval-engine/internal/config"
)

func TestNewServer_InitializesAllComponents(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DBPath = ":memory:"

	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.storage.Close()

	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.storage)
	assert.NotNil(t, s.embedder)
	assert.NotNil(t, s.dispatcher)
}

func TestHandleGetIndexStatus_SucceedsOnEmptyCorpus(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DBPath = ":memory:"
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.storage.Close()

	result, err := s.handleGetIndexStatus(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestHandleRetrieveContext_RejectsMissingConversationID(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DBPath = ":memory:"
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.storage.Close()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"query": "what did we decide",
	}

	_, err = s.handleRetrieveContext(context.Background(), req)
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleRetrieveContext_RejectsEmptyQuery(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DBPath = ":memory:"
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.storage.Close()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"conversation_id": "b3f1c9e0-6b8e-4a2e-9a0d-7b1a2c3d4e5f",
		"query":           "",
	}

	_, err = s.handleRetrieveContext(context.Background(), req)
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestHandleRetrieveContext_RejectsInvalidRetrievalMode(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DBPath = ":memory:"
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.storage.Close()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"conversation_id": "b3f1c9e0-6b8e-4a2e-9a0d-7b1a2c3d4e5f",
		"query":           "what did we decide",
		"retrieval_mode":  "vector_only",
	}

	_, err = s.handleRetrieveContext(context.Background(), req)
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}
