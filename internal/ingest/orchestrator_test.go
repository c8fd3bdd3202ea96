package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/filestore"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

const testDims = 16

type harness struct {
	dir      string
	uploads  string
	embedder *embedding.MockEmbedder
	corpus   *corpus.Store
	registry *storage.SQLiteStorage
	keyword  *keyword.BleveIndex
	orch     *Orchestrator
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{dir: dir, uploads: filepath.Join(dir, "uploaded_docs"), embedder: embedding.NewMockEmbedder(testDims)}

	idx, err := vector.NewMemoryIndex(testDims)
	require.NoError(t, err)
	h.corpus = corpus.NewStore(idx, h.embedder, filepath.Join(dir, "index.bin"), filepath.Join(dir, "meta.json"))
	files, err := filestore.NewLocalStore(h.uploads)
	require.NoError(t, err)
	h.registry, err = storage.NewSQLiteStorage(filepath.Join(dir, "documents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.registry.Close() })
	h.keyword, err = keyword.NewBleveIndex(filepath.Join(dir, "clauses.bleve"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.keyword.Close() })
	ch, err := chunker.NewChunker(120, 20)
	require.NoError(t, err)

	opts = append([]Option{WithKeywordIndex(h.keyword)}, opts...)
	h.orch = NewOrchestrator(extract.NewExtractor(), ch, h.corpus, files, h.registry, opts...)
	return h
}

func (h *harness) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, "in", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) retained(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.uploads)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

const policyText = `Section 1: Coverage
The insurer covers accidental damage to the insured vehicle up to Rs. 5,00,000.

Section 2: Exclusions
Damage caused while driving under the influence is not covered. Wear and tear is excluded.

Section 3: Claims
Claims must be filed within 30 days of the incident with the original invoice.`

func TestIngest_success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	docID, err := h.orch.Ingest(ctx, h.write(t, "policy.txt", policyText))
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	chunks := h.corpus.Chunks()
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, docID, c.DocID)
		assert.Equal(t, "policy.txt", c.Filename)
		assert.LessOrEqual(t, c.Length, 120)
	}
	assert.True(t, chunks[0].HasSection())
	assert.Equal(t, 1, h.embedder.Calls(), "the whole document is embedded in one batch")

	assert.Equal(t, []string{docID + "_policy.txt"}, h.retained(t))

	doc, err := h.registry.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), doc.ChunkCount)
	assert.Equal(t, 0, doc.FirstChunkID)
	assert.Equal(t, filepath.Join(h.uploads, docID+"_policy.txt"), doc.StoredPath)

	n, err := h.keyword.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(chunks)), n)
}

func TestIngest_secondDocumentContinuesIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.Ingest(ctx, h.write(t, "a.txt", policyText))
	require.NoError(t, err)
	firstCount := h.corpus.Size()
	second, err := h.orch.IngestFile(ctx, h.write(t, "upload-123.tmp", "Short note about premiums."), "note.md")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	c, ok := h.corpus.Chunk(firstCount)
	require.True(t, ok)
	assert.Equal(t, second, c.DocID)
	assert.Equal(t, "note.md", c.Filename)
	assert.Equal(t, 0, c.Ordinal)
	assert.Equal(t, firstCount, c.ChunkID)

	doc, err := h.registry.GetDocument(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, firstCount, doc.FirstChunkID)
}

func TestIngest_rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		opts    []Option
		wantErr error
	}{
		{"unsupported_extension", "image.png", "binary", nil, extract.ErrUnsupportedFormat},
		{"not_in_allowed_list", "notes.txt", "some text", []Option{WithExtensions([]string{".pdf"})}, extract.ErrUnsupportedFormat},
		{"empty_text", "blank.txt", "  \n\n\t ", nil, ErrEmptyText},
		{"malformed_docx", "broken.docx", "not a zip", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts...)
			docID, err := h.orch.Ingest(context.Background(), h.write(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Empty(t, docID)

			var extErr *ExtractionError
			require.ErrorAs(t, err, &extErr)
			assert.Equal(t, tt.file, extErr.Filename)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 0, h.corpus.Size())
			assert.Empty(t, h.retained(t))
			assert.Equal(t, 0, h.embedder.Calls())
		})
	}
}

func TestIngest_embeddingFailureRemovesRetainedFile(t *testing.T) {
	h := newHarness(t)
	h.embedder.Err = fmt.Errorf("%w: quota exceeded", embedding.ErrEmbedding)

	docID, err := h.orch.Ingest(context.Background(), h.write(t, "policy.txt", policyText))
	require.Error(t, err)
	assert.Empty(t, docID)

	var embErr *corpus.EmbeddingError
	assert.ErrorAs(t, err, &embErr)
	assert.Equal(t, 0, h.corpus.Size())
	assert.Empty(t, h.retained(t))
	n, _ := h.registry.CountDocuments(context.Background())
	assert.Equal(t, int64(0), n)
}

func TestIngestDirectory(t *testing.T) {
	h := newHarness(t, WithWorkers(3))
	for i := 0; i < 4; i++ {
		h.write(t, fmt.Sprintf("doc%d.txt", i), strings.Repeat(fmt.Sprintf("Document %d sentence. ", i), 20))
	}
	h.write(t, "nested/extra.md", "Nested markdown content.")
	h.write(t, "skip.bin", "ignored")

	n, err := h.orch.IngestDirectory(context.Background(), filepath.Join(h.dir, "in"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	chunks := h.corpus.Chunks()
	docs := map[string]int{}
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		if i > 0 && chunks[i-1].DocID != c.DocID {
			_, seen := docs[c.DocID]
			assert.False(t, seen, "chunks of %s are not contiguous", c.Filename)
		}
		docs[c.DocID]++
	}
	assert.Len(t, docs, 5)
	assert.Len(t, h.retained(t), 5)
}

func TestIngestDirectory_reportsFirstError(t *testing.T) {
	h := newHarness(t, WithWorkers(1))
	h.write(t, "good.txt", "Good content here.")
	h.write(t, "empty.txt", "")

	n, err := h.orch.IngestDirectory(context.Background(), filepath.Join(h.dir, "in"))
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyText))
}

func TestIngestDirectory_notADirectory(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.IngestDirectory(context.Background(), h.write(t, "file.txt", "x"))
	assert.Error(t, err)
}
