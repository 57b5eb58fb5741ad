package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbeddingServer(t *testing.T, vec []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embedding", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponseBody{Embedding: vec})
	}))
}

func testVector() []float32 {
	v := make([]float32, types.EmbeddingDim)
	v[0] = 1
	return v
}

func TestHTTPProvider_GenerateEmbedding(t *testing.T) {
	srv := fakeEmbeddingServer(t, testVector())
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 2*time.Second, nil)
	defer p.Close()

	emb, err := p.GenerateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, emb.Vector, types.EmbeddingDim)
	assert.Equal(t, float32(1), emb.Vector[0])
}

func TestHTTPProvider_RejectsEmptyText(t *testing.T) {
	p := NewHTTPProvider("http://unused", time.Second, nil)
	_, err := p.GenerateEmbedding(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestHTTPProvider_CachesByContentHash(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponseBody{Embedding: testVector()})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 2*time.Second, nil)
	defer p.Close()

	_, err := p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_RetriesOnceOnTransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponseBody{Embedding: testVector()})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 2*time.Second, nil)
	defer p.Close()

	emb, err := p.GenerateEmbedding(context.Background(), "retry me")
	require.NoError(t, err)
	require.Len(t, emb.Vector, types.EmbeddingDim)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPProvider_WrongDimensionIsTransportError(t *testing.T) {
	srv := fakeEmbeddingServer(t, []float32{1, 2, 3})
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 2*time.Second, nil)
	defer p.Close()

	_, err := p.GenerateEmbedding(context.Background(), "short vector")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)
}
