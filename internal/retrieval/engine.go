// Package retrieval finds the corpus chunks nearest to a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultTopK is used when Retrieve is called with k <= 0 and no WithTopK option is given.
const DefaultTopK = 12

// ErrIndexUnavailable reports an engine with no corpus attached. Retrieve treats an empty
// corpus as "no results", not as this error.
var ErrIndexUnavailable = errors.New("similarity index unavailable")

// Engine embeds queries and maps nearest neighbours back to chunks.
type Engine struct {
	corpus   *corpus.Store
	embedder embedding.Embedder
	topK     int
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTopK sets the k used when Retrieve is called with k <= 0.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine returns an Engine over store.
func NewEngine(store *corpus.Store, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{corpus: store, embedder: embedder, topK: DefaultTopK}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// TopK returns the default number of results.
func (e *Engine) TopK() int { return e.topK }

// Retrieve returns at most k chunks ordered by ascending distance to query. An empty corpus
// yields no results and no error, without embedding the query. Hits whose position has no
// metadata, or whose text is blank, are dropped.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]*models.QueryResult, error) {
	if e.corpus == nil {
		return nil, ErrIndexUnavailable
	}
	if k <= 0 {
		k = e.topK
	}
	if e.corpus.Size() == 0 {
		e.logger.Debug("Retrieval skipped, corpus is empty")
		return nil, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Error("Failed to embed query", zap.Error(err))
		if !errors.Is(err, embedding.ErrEmbedding) {
			err = fmt.Errorf("%w: %v", embedding.ErrEmbedding, err)
		}
		return nil, err
	}

	neighbors, err := e.corpus.Nearest(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}

	results := make([]*models.QueryResult, 0, len(neighbors))
	dropped := 0
	for _, n := range neighbors {
		if n.Chunk == nil || strings.TrimSpace(n.Chunk.Text) == "" {
			dropped++
			continue
		}
		results = append(results, &models.QueryResult{Chunk: n.Chunk, Score: n.Distance})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	if dropped > 0 {
		e.logger.Warn("Dropped neighbours without usable metadata", zap.Int("dropped", dropped))
	}
	e.logger.Debug("Retrieved chunks", zap.Int("k", k), zap.Int("results", len(results)))
	return results, nil
}
