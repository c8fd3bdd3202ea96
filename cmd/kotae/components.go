package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/filestore"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Components holds initialized services.
type Components struct {
	Registry  storage.Storage
	Embedder  embedding.Embedder
	Corpus    *corpus.Store
	Keyword   keyword.KeywordIndex
	Files     filestore.Store
	Ingest    *ingest.Orchestrator
	Retrieval *retrieval.Engine
	Answers   *answer.Synthesizer
	logger    *zap.Logger
}

// Close flushes the corpus and releases every component.
func (c *Components) Close() error {
	var errs []error
	if c.Corpus != nil {
		if err := c.Corpus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close corpus: %w", err))
		}
	}
	if c.Keyword != nil {
		if err := c.Keyword.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close keyword index: %w", err))
		}
	}
	if c.Registry != nil {
		if err := c.Registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close registry: %w", err))
		}
	}
	if c.Embedder != nil {
		if err := c.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
	}
	return errors.Join(errs...)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Registry, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	c.Embedder, err = embedding.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	index, err := vector.NewVectorIndex(cfg.Storage.IndexType, c.Embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("Vector index initialized",
		zap.String("type", cfg.Storage.IndexType),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	store := corpus.NewStore(index, c.Embedder, cfg.Storage.IndexPath, cfg.Storage.MetadataPath,
		corpus.WithLogger(logger))
	if err := store.Load(); err != nil {
		// Not kept on c: closing a corpus flushes it, and the artifacts must stay as found.
		_ = index.Close()
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	c.Corpus = store

	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.Keyword = kw
	if err := syncKeywordIndex(ctx, c.Corpus, c.Keyword, logger); err != nil {
		logger.Warn("Keyword index rebuild failed", zap.Error(err))
	}

	c.Files, err = filestore.New(ctx, cfg.Uploads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize uploads store: %w", err)
	}

	ch, err := chunker.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, chunker.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}
	c.Ingest = ingest.NewOrchestrator(extract.NewExtractor(), ch, c.Corpus, c.Files, c.Registry,
		ingest.WithKeywordIndex(c.Keyword),
		ingest.WithExtensions(cfg.Ingest.Extensions),
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithLogger(logger),
	)

	c.Retrieval = retrieval.NewEngine(c.Corpus, c.Embedder,
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithLogger(logger),
	)

	var completer llm.Completer
	client, err := llm.NewClientFromConfig(cfg.LLM, logger)
	if err != nil {
		// Questions still get the completion-failure answer.
		logger.Warn("Completion client unavailable", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	} else {
		completer = client
	}
	opts := []answer.Option{
		answer.WithTopK(cfg.Retrieval.TopK),
		answer.WithTimeout(cfg.LLM.Timeout),
		answer.WithModel(cfg.LLM.Model),
		answer.WithLogger(logger),
	}
	if t := cfg.LLM.Temperature; t != nil {
		opts = append(opts, answer.WithTemperature(*t))
	}
	c.Answers = answer.NewSynthesizer(c.Retrieval, completer, opts...)
	return c, nil
}

// syncKeywordIndex re-indexes every corpus chunk when the clause index has drifted from the
// corpus. Chunk ids are the document ids, so re-indexing overwrites rather than duplicates.
func syncKeywordIndex(ctx context.Context, store *corpus.Store, kw keyword.KeywordIndex, logger *zap.Logger) error {
	n, err := kw.DocCount()
	if err != nil {
		return err
	}
	size := store.Size()
	if int(n) == size {
		return nil
	}
	utils.OrNop(logger).Info("Rebuilding keyword index", zap.Uint64("indexed", n), zap.Int("corpus", size))
	return kw.IndexChunks(ctx, store.Chunks())
}
