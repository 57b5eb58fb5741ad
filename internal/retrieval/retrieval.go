// Package retrieval dispatches a query across the lexical, vector, and
// graph pathways and assembles the result, the top-level entry point the
// MCP tool and CLI both call into.
package retrieval

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/ctxfabric/retrieval-engine/internal/assembler"
	"github.com/ctxfabric/retrieval-engine/internal/embedder"
	"github.com/ctxfabric/retrieval-engine/internal/fusion"
	"github.com/ctxfabric/retrieval-engine/internal/graph"
	"github.com/ctxfabric/retrieval-engine/internal/keyword"
	"github.com/ctxfabric/retrieval-engine/internal/lexical"
	"github.com/ctxfabric/retrieval-engine/internal/relevance"
	"github.com/ctxfabric/retrieval-engine/internal/storage"
	"github.com/ctxfabric/retrieval-engine/internal/vector"
	"github.com/ctxfabric/retrieval-engine/pkg/types"
	"github.com/google/uuid"
)

// defaultVectorLimit and defaultLexicalLimit bound how many raw hits each
// pathway fetches before filtering; both are intentionally larger than any
// reasonable top_k so fusion has enough candidates to rank from.
const (
	defaultLexicalLimit = 50
	defaultVectorLimit  = 20
)

// Dispatcher wires the pathways together and owns the resources that must be
// shared across requests: the embedding-call semaphore and the query-result
// cache.
type Dispatcher struct {
	store   storage.Storage
	embed   embedder.Embedder
	lexical *lexical.Searcher
	vector  *vector.Searcher
	graph   *graph.Traverser
	sem     *semaphore.Weighted

	cache    *lru.Cache[[32]byte, cacheEntry]
	cacheTTL time.Duration
	deadline time.Duration
}

type cacheEntry struct {
	response  *types.Response
	expiresAt time.Time
}

// Options configures a Dispatcher; zero values take the documented defaults.
type Options struct {
	HybridSemaphoreSize int64
	QueryCacheSize      int
	QueryCacheTTL       time.Duration
	RequestDeadline     time.Duration
}

// New builds a Dispatcher over store and embed.
func New(store storage.Storage, embed embedder.Embedder, opts Options) *Dispatcher {
	if opts.HybridSemaphoreSize <= 0 {
		opts.HybridSemaphoreSize = 32
	}
	if opts.QueryCacheSize <= 0 {
		opts.QueryCacheSize = 1000
	}
	if opts.QueryCacheTTL <= 0 {
		opts.QueryCacheTTL = 60 * time.Second
	}
	if opts.RequestDeadline <= 0 {
		opts.RequestDeadline = 5 * time.Second
	}

	cache, err := lru.New[[32]byte, cacheEntry](opts.QueryCacheSize)
	if err != nil {
		panic(fmt.Sprintf("retrieval: invalid query cache size: %v", err))
	}

	return &Dispatcher{
		store:    store,
		embed:    embed,
		lexical:  lexical.New(store),
		vector:   vector.New(store, embed),
		graph:    graph.New(store),
		sem:      semaphore.NewWeighted(opts.HybridSemaphoreSize),
		cache:    cache,
		cacheTTL: opts.QueryCacheTTL,
		deadline: opts.RequestDeadline,
	}
}

// Dispatch runs req through the pathways its Mode selects, fuses, filters,
// and assembles the result, bounded by the dispatcher's configured
// per-request deadline.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.Request) (*types.Response, error) {
	start := time.Now()

	if req.Mode == "" {
		req.Mode = types.ModeHybrid
	}

	cacheKey := d.cacheKeyFor(req)
	if cached, ok := d.cacheGet(cacheKey); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	fp, err := keyword.Analyze(req.Query)
	if err != nil {
		return nil, err
	}

	var lexHits []storage.LexicalHit
	var hops []graph.HopEdge
	var edgeMatches int
	degraded := false

	switch req.Mode {
	case types.ModeLexical:
		lexHits, err = d.runLexical(ctx, fp)
		if err != nil {
			return nil, err
		}
	case types.ModeGraphOnly:
		hops, edgeMatches, err = d.runGraph(ctx, req, fp)
		if err != nil {
			return nil, err
		}
	default:
		lexHits, hops, edgeMatches, degraded, err = d.runHybrid(ctx, req, fp)
		if err != nil {
			return nil, err
		}
	}

	candidates, err := fusion.Rank(fp, lexHits, hops, d.fetchMessages(ctx))
	if err != nil {
		return nil, err
	}

	tokenBudget := req.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = assembler.DefaultTokenBudget
	}
	topK := req.TopK
	if topK <= 0 {
		topK = assembler.DefaultTopK
	}
	assembled := assembler.Assemble(candidates, hops, tokenBudget, topK)

	resp := &types.Response{
		Messages: assembled.Messages,
		Edges:    assembled.Edges,
		Stats: types.Stats{
			LexicalCandidates:   len(lexHits),
			EdgeMatches:         edgeMatches,
			ReachedEdges:        len(hops),
			FusedCandidates:     len(candidates),
			AssembledMessages:   len(assembled.Messages),
			UniqueConversations: assembled.UniqueConversations,
			ContextWindowUsed:   assembled.ContextWindowUsed,
			Mode:                req.Mode,
			TruncatedByBudget:   assembled.TruncatedByBudget,
			Degraded:            degraded,
			Duration:            time.Since(start),
		},
	}

	d.cacheSet(cacheKey, resp)
	return resp, nil
}

func (d *Dispatcher) fetchMessages(ctx context.Context) func(ids []uuid.UUID) ([]types.Message, error) {
	return func(ids []uuid.UUID) ([]types.Message, error) {
		return d.store.FetchMessages(ctx, ids)
	}
}

func (d *Dispatcher) runLexical(ctx context.Context, fp *types.Fingerprint) ([]storage.LexicalHit, error) {
	return d.lexical.Search(ctx, fp, defaultLexicalLimit)
}

// runGraph seeds the traverser from the vector pathway's top edges, filtered
// to those whose text actually matches the query's expanded keywords, then
// expands outward. The returned int is the vector pathway's raw top-k hit
// count, taken before relevance filtering or graph expansion.
func (d *Dispatcher) runGraph(ctx context.Context, req types.Request, fp *types.Fingerprint) ([]graph.HopEdge, int, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer d.sem.Release(1)

	edgeHits, err := d.vector.Search(ctx, req.Query, defaultVectorLimit)
	if err != nil {
		return nil, 0, err
	}

	seeds := make([]storage.EdgeHit, 0, len(edgeHits))
	for _, hit := range edgeHits {
		edge := hit.Edge
		if relevance.EdgeRelevant(fp, &edge) {
			seeds = append(seeds, hit)
		}
	}
	hops, err := d.graph.Traverse(ctx, req.ConversationID, seeds, graph.DefaultMaxHops)
	return hops, len(edgeHits), err
}

// hybridResult carries one sibling subtask's outcome back to the join point.
type hybridResult struct {
	lexHits     []storage.LexicalHit
	hops        []graph.HopEdge
	edgeMatches int
	err         error
}

// runHybrid fans the lexical and graph pathways out as two sibling
// goroutines and joins on whichever finishes last, returning degraded=true
// and the surviving pathway's result when exactly one sibling fails with a
// transport error. Both failing, or either failing with a non-transport
// error, is surfaced to the caller.
func (d *Dispatcher) runHybrid(ctx context.Context, req types.Request, fp *types.Fingerprint) ([]storage.LexicalHit, []graph.HopEdge, int, bool, error) {
	lexChan := make(chan hybridResult, 1)
	graphChan := make(chan hybridResult, 1)

	go func() {
		hits, err := d.runLexical(ctx, fp)
		lexChan <- hybridResult{lexHits: hits, err: err}
	}()
	go func() {
		hops, edgeMatches, err := d.runGraph(ctx, req, fp)
		graphChan <- hybridResult{hops: hops, edgeMatches: edgeMatches, err: err}
	}()

	var lexRes, graphRes hybridResult
	var lexDone, graphDone bool
	for !lexDone || !graphDone {
		select {
		case lexRes = <-lexChan:
			lexDone = true
		case graphRes = <-graphChan:
			graphDone = true
		case <-ctx.Done():
			return nil, nil, 0, false, ctx.Err()
		}
	}

	switch {
	case lexRes.err != nil && graphRes.err != nil:
		return nil, nil, 0, false, fmt.Errorf("hybrid retrieval: lexical: %w; graph: %v", lexRes.err, graphRes.err)
	case lexRes.err != nil:
		if !isTransportFailure(lexRes.err) {
			return nil, nil, 0, false, lexRes.err
		}
		return nil, graphRes.hops, graphRes.edgeMatches, true, nil
	case graphRes.err != nil:
		if !isTransportFailure(graphRes.err) {
			return nil, nil, 0, false, graphRes.err
		}
		return lexRes.lexHits, nil, 0, true, nil
	default:
		return lexRes.lexHits, graphRes.hops, graphRes.edgeMatches, false, nil
	}
}

func isTransportFailure(err error) bool {
	return errors.Is(err, types.ErrTransport) || errors.Is(err, types.ErrTimeout)
}

func (d *Dispatcher) cacheKeyFor(req types.Request) [32]byte {
	s := fmt.Sprintf("%s|%s|%s|%d|%d", req.ConversationID, req.Mode, req.Query, req.TopK, req.TokenBudget)
	return sha256.Sum256([]byte(s))
}

func (d *Dispatcher) cacheGet(key [32]byte) (*types.Response, bool) {
	entry, ok := d.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		d.cache.Remove(key)
		return nil, false
	}
	return entry.response, true
}

func (d *Dispatcher) cacheSet(key [32]byte, resp *types.Response) {
	d.cache.Add(key, cacheEntry{response: resp, expiresAt: time.Now().Add(d.cacheTTL)})
}
