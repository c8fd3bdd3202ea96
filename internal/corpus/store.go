// Package corpus owns the append-only corpus: a similarity index and a metadata sequence
// kept in lockstep so that vector i always describes chunk i.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Neighbor is one nearest-neighbour hit. Chunk is nil when the index returned a position
// outside the metadata sequence.
type Neighbor struct {
	ID       int
	Distance float32
	Chunk    *models.Chunk
}

// ErrStoreUnusable is returned by Append and Flush after a failed append could not be undone.
var ErrStoreUnusable = errors.New("corpus store unusable")

// Store serializes appends behind a single writer lock and lets searches run concurrently.
type Store struct {
	mu           sync.RWMutex
	index        vector.VectorIndex
	embedder     embedding.Embedder
	embedderID   string
	chunks       []*models.Chunk
	broken       error
	indexPath    string
	metadataPath string
	logger       *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns an empty store over index. Call Load to restore persisted state.
func NewStore(index vector.VectorIndex, embedder embedding.Embedder, indexPath, metadataPath string, opts ...Option) *Store {
	s := &Store{
		index:        index,
		embedder:     embedder,
		embedderID:   embedding.Identity(embedder),
		indexPath:    indexPath,
		metadataPath: metadataPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Load restores both artifacts. Neither present means an empty corpus. Exactly one present,
// a length disagreement, chunk ids that differ from their positions, or vectors produced by a
// different embedder yield *CorruptionError.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasIndex, err := exists(s.indexPath)
	if err != nil {
		return fmt.Errorf("stat index: %w", err)
	}
	hasMeta, err := exists(s.metadataPath)
	if err != nil {
		return fmt.Errorf("stat metadata: %w", err)
	}
	switch {
	case !hasIndex && !hasMeta:
		s.logger.Info("No persisted corpus, starting empty",
			zap.String("index_path", s.indexPath), zap.String("metadata_path", s.metadataPath))
		return nil
	case !hasIndex:
		return s.corrupt(&CorruptionError{IndexSize: -1, MetadataSize: s.metadataLen(), Reason: "index artifact missing"})
	case !hasMeta:
		return s.corrupt(&CorruptionError{IndexSize: -1, MetadataSize: -1, Reason: "metadata artifact missing"})
	}

	if err := s.index.Load(s.indexPath); err != nil {
		return s.corrupt(&CorruptionError{IndexSize: -1, MetadataSize: -1, Reason: "index unreadable", Err: err})
	}
	meta, err := readMetadata(s.metadataPath)
	if err != nil {
		return s.corrupt(&CorruptionError{IndexSize: s.index.Size(), MetadataSize: -1, Reason: "metadata unreadable", Err: err})
	}
	chunks := meta.Chunks
	if meta.Embedder != s.embedderID {
		return s.corrupt(&CorruptionError{
			IndexSize:    s.index.Size(),
			MetadataSize: len(chunks),
			Reason:       fmt.Sprintf("vectors were produced by embedder %q, current embedder is %q", meta.Embedder, s.embedderID),
		})
	}
	if s.index.Size() != len(chunks) {
		return s.corrupt(&CorruptionError{IndexSize: s.index.Size(), MetadataSize: len(chunks), Reason: "length mismatch"})
	}
	for i, c := range chunks {
		if c == nil || c.ChunkID != i {
			return s.corrupt(&CorruptionError{
				IndexSize:    s.index.Size(),
				MetadataSize: len(chunks),
				Reason:       fmt.Sprintf("metadata record %d does not carry chunk id %d", i, i),
			})
		}
	}
	s.chunks = chunks
	s.logger.Info("Corpus loaded", zap.Int("chunks", len(chunks)), zap.String("index_type", s.index.Type()))
	return nil
}

func (s *Store) metadataLen() int {
	meta, err := readMetadata(s.metadataPath)
	if err != nil {
		return -1
	}
	return len(meta.Chunks)
}

func (s *Store) corrupt(err *CorruptionError) error {
	s.logger.Error("Corpus artifacts are inconsistent",
		zap.Int("index_size", err.IndexSize),
		zap.Int("metadata_size", err.MetadataSize),
		zap.String("reason", err.Reason),
		zap.Error(err.Err))
	return err
}

// Append embeds every chunk in one batch, then, under the writer lock, adds the vectors and
// metadata together and persists both artifacts. Chunk ids are assigned from the current corpus size and returned.
// On any failure nothing is appended: a batch whose persist fails is removed again.
func (s *Store) Append(ctx context.Context, chunks []*models.Chunk) ([]int, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Error("Failed to embed chunk batch", zap.Int("chunks", len(chunks)), zap.Error(err))
		return nil, &EmbeddingError{BatchSize: len(chunks), Err: err}
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrEmbedding, len(vectors), len(chunks))
		return nil, &EmbeddingError{BatchSize: len(chunks), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnusable, s.broken)
	}
	base := len(s.chunks)
	if err := s.index.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}

	ids := make([]int, len(chunks))
	for i, c := range chunks {
		c.ChunkID = base + i
		ids[i] = c.ChunkID
	}
	s.chunks = append(s.chunks, chunks...)

	if err := s.persistLocked(); err != nil {
		s.rollbackLocked(base)
		return nil, err
	}
	s.logger.Debug("Chunks appended", zap.Int("first_chunk_id", base), zap.Int("count", len(chunks)))
	return ids, nil
}

// Nearest returns up to k neighbours of query, closest first.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]Neighbor, 0, len(hits))
	for _, h := range hits {
		n := Neighbor{ID: int(h.ID), Distance: h.Distance}
		if h.ID >= 0 && int(h.ID) < len(s.chunks) {
			n.Chunk = s.chunks[h.ID]
		}
		out = append(out, n)
	}
	return out, nil
}

// Chunk returns the chunk with the given id.
func (s *Store) Chunk(id int) (*models.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.chunks) {
		return nil, false
	}
	return s.chunks[id], true
}

// Chunks returns a snapshot of every chunk in corpus order.
func (s *Store) Chunks() []*models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Chunk(nil), s.chunks...)
}

// Size returns the number of chunks in the corpus.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// IndexType reports the similarity index implementation.
func (s *Store) IndexType() string {
	return s.index.Type()
}

// Flush persists both artifacts. An empty corpus writes nothing.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnusable, s.broken)
	}
	if len(s.chunks) == 0 {
		return nil
	}
	return s.persistLocked()
}

// Close flushes and closes the index.
func (s *Store) Close() error {
	flushErr := s.Flush()
	if err := s.index.Close(); err != nil {
		return err
	}
	return flushErr
}

// rollbackLocked drops everything from position base on, in memory and in the index, then
// rewrites the artifacts so the disk matches memory again. If that rewrite fails too the
// artifacts may disagree; Load will report it, and the next successful append repairs it.
func (s *Store) rollbackLocked(base int) {
	clear(s.chunks[base:])
	s.chunks = s.chunks[:base]
	if err := s.index.Truncate(base); err != nil {
		s.broken = fmt.Errorf("undo append at %d: %w", base, err)
		s.logger.Error("Failed to undo append, refusing further writes", zap.Int("size", base), zap.Error(err))
		return
	}
	if base == 0 {
		for _, path := range []string{s.indexPath, s.metadataPath} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("Failed to remove artifact after undo", zap.String("path", path), zap.Error(err))
			}
		}
		return
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("Artifacts not restored after undo", zap.Int("size", base), zap.Error(err))
	}
}

func (s *Store) persistLocked() error {
	if err := writeAtomic(s.indexPath, s.index.Save); err != nil {
		s.logger.Error("Failed to persist index", zap.String("path", s.indexPath), zap.Error(err))
		return fmt.Errorf("persist index: %w", err)
	}
	if err := writeMetadata(s.metadataPath, s.embedderID, s.chunks); err != nil {
		s.logger.Error("Failed to persist metadata", zap.String("path", s.metadataPath), zap.Error(err))
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}
