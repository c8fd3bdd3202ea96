// Package ingest turns files into corpus chunks: extract, chunk, retain the original,
// append to the corpus, then record the document.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/filestore"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Orchestrator runs ingestions. It is safe for concurrent use; the corpus serializes appends.
type Orchestrator struct {
	extractor  *extract.Extractor
	chunker    *chunker.Chunker
	corpus     *corpus.Store
	files      filestore.Store
	registry   storage.Storage
	keyword    keyword.KeywordIndex
	extensions []string
	workers    int
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithKeywordIndex also indexes every appended chunk in a lexical clause index.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(o *Orchestrator) { o.keyword = k }
}

// WithExtensions restricts ingestion to the given extensions (with or without the dot).
func WithExtensions(exts []string) Option {
	return func(o *Orchestrator) { o.extensions = exts }
}

// WithWorkers sets the directory ingestion pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// NewOrchestrator wires the ingestion pipeline. registry may be nil.
func NewOrchestrator(
	extractor *extract.Extractor,
	chunker *chunker.Chunker,
	corpus *corpus.Store,
	files filestore.Store,
	registry storage.Storage,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		extractor: extractor,
		chunker:   chunker,
		corpus:    corpus,
		files:     files,
		registry:  registry,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = utils.OrNop(o.logger)
	if o.workers < 1 {
		o.workers = runtime.NumCPU() / 2
		if o.workers < 1 {
			o.workers = 1
		}
	}
	return o
}

// Ingest ingests the file at path under its base name and returns the new document id.
func (o *Orchestrator) Ingest(ctx context.Context, path string) (string, error) {
	return o.IngestFile(ctx, path, filepath.Base(path))
}

// IngestFile ingests the file at path, recorded under filename. The format is taken from
// filename's extension so uploads spooled to temporary files keep the client's name.
func (o *Orchestrator) IngestFile(ctx context.Context, path, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !o.Allowed(ext) {
		o.logger.Error("Unsupported file extension", zap.String("filename", filename), zap.String("ext", ext))
		return "", &ExtractionError{Filename: filename, Err: fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, ext)}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text, err := o.extractor.ExtractBytes(content, ext)
	if err != nil {
		o.logger.Error("Failed to extract text", zap.String("filename", filename), zap.Error(err))
		return "", &ExtractionError{Filename: filename, Err: err}
	}
	if text == "" {
		o.logger.Error("No text extracted", zap.String("filename", filename))
		return "", &ExtractionError{Filename: filename, Err: ErrEmptyText}
	}

	docID := uuid.New().String()
	chunks := o.chunker.Chunk(text)
	if len(chunks) == 0 {
		o.logger.Error("Document produced no chunks", zap.String("filename", filename))
		return "", &ExtractionError{Filename: filename, Err: ErrEmptyText}
	}
	for _, c := range chunks {
		c.DocID = docID
		c.Filename = filename
	}

	location, err := o.retain(ctx, path, docID, filename)
	if err != nil {
		return "", err
	}
	ids, err := o.corpus.Append(ctx, chunks)
	if err != nil {
		o.logger.Error("Failed to append chunks", zap.String("doc_id", docID), zap.Error(err))
		if delErr := o.files.Delete(ctx, location); delErr != nil {
			o.logger.Warn("Failed to remove retained file", zap.String("location", location), zap.Error(delErr))
		}
		return "", err
	}

	doc := &models.Document{
		ID:           docID,
		Filename:     filename,
		StoredPath:   location,
		ChunkCount:   len(ids),
		FirstChunkID: ids[0],
		CreatedAt:    time.Now().UTC(),
	}
	if o.registry != nil {
		if err := o.registry.CreateDocument(ctx, doc); err != nil {
			o.logger.Error("Failed to record document", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	if o.keyword != nil {
		if err := o.keyword.IndexChunks(ctx, chunks); err != nil {
			o.logger.Error("Failed to index clauses", zap.String("doc_id", docID), zap.Error(err))
		}
	}
	o.logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(ids)),
		zap.Int("first_chunk_id", ids[0]))
	return docID, nil
}

func (o *Orchestrator) retain(ctx context.Context, path, docID, filename string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	location, err := o.files.Save(ctx, docID, filename, f)
	if err != nil {
		o.logger.Error("Failed to retain original", zap.String("doc_id", docID), zap.Error(err))
		return "", fmt.Errorf("retain original: %w", err)
	}
	return location, nil
}

// Allowed reports whether ext can be ingested: it has an extractor and, when an
// extension list is configured, appears in it.
func (o *Orchestrator) Allowed(ext string) bool {
	ext = strings.ToLower(ext)
	if !extract.Supports(ext) {
		return false
	}
	if len(o.extensions) == 0 {
		return true
	}
	norm := strings.TrimPrefix(ext, ".")
	for _, a := range o.extensions {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == norm {
			return true
		}
	}
	return false
}

// IngestDirectory walks dir recursively and ingests every allowed regular file on a
// worker pool. Returns the number of files ingested and the first error encountered.
// Files that fail do not stop the others.
func (o *Orchestrator) IngestDirectory(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !o.Allowed(filepath.Ext(path)) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		if fi, statErr := os.Stat(path); statErr != nil || !fi.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		ingested atomic.Int64
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}
	for _, path := range paths {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				record(ctx.Err())
				return
			}
			if _, err := o.Ingest(ctx, path); err != nil {
				record(fmt.Errorf("%s: %w", path, err))
				return
			}
			ingested.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			record(submitErr)
		}
	}
	wg.Wait()
	if firstErr != nil {
		o.logger.Warn("Directory ingestion finished with errors", zap.String("dir", dir), zap.Error(firstErr))
	}
	return int(ingested.Load()), firstErr
}
