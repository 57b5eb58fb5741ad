package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
)

// HTTPProvider calls the embedding service's POST /embedding endpoint:
// request {"content": "..."}, response {"embedding": [f32; 768]}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	cache   *Cache
	model   string
}

// NewHTTPProvider builds a provider against baseURL (e.g.
// "http://localhost:8081"), with its own *http.Client so callers can tune
// timeouts independently of any other HTTP traffic.
func NewHTTPProvider(baseURL string, timeout time.Duration, cache *Cache) *HTTPProvider {
	if cache == nil {
		cache = NewCache(0)
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		model:   "embedding-service-default",
	}
}

type embeddingRequestBody struct {
	Content string `json:"content"`
}

type embeddingResponseBody struct {
	Embedding []float32 `json:"embedding"`
}

// GenerateEmbedding returns text's embedding, served from cache when
// present, retried once with a fixed backoff on transport failure, and
// wrapped in types.ErrTransport/types.ErrTimeout so callers never need to
// inspect *http.Response or context error types directly.
func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, text string) (*Embedding, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	hash := ComputeHash(text)
	if cached, ok := p.cache.Get(hash); ok {
		return cached, nil
	}

	emb, err := retryOnceWithBackoff(ctx, func() (*Embedding, error) {
		return p.call(ctx, text, hash)
	})
	if err != nil {
		return nil, err
	}
	p.cache.Set(hash, emb)
	return emb, nil
}

func (p *HTTPProvider) call(ctx context.Context, text, hash string) (*Embedding, error) {
	body, err := json.Marshal(embeddingRequestBody{Content: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: embedding service returned %d: %s", types.ErrTransport, resp.StatusCode, data)
	}

	var out embeddingResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode embedding response: %v", types.ErrTransport, err)
	}
	if len(out.Embedding) != types.EmbeddingDim {
		return nil, fmt.Errorf("%w: %v", types.ErrTransport, dimensionError(len(out.Embedding), types.EmbeddingDim))
	}

	return &Embedding{Vector: out.Embedding, Model: p.model, Hash: hash}, nil
}

// Close releases the provider's idle HTTP connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
