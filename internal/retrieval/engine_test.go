package retrieval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

const testDims = 64

func newCorpus(t *testing.T, idx vector.VectorIndex, e embedding.Embedder) *corpus.Store {
	t.Helper()
	dir := t.TempDir()
	return corpus.NewStore(idx, e, filepath.Join(dir, "index.bin"), filepath.Join(dir, "meta.json"))
}

func memIndex(t *testing.T, dims int) *vector.MemoryIndex {
	t.Helper()
	idx, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	return idx
}

func appendTexts(t *testing.T, s *corpus.Store, texts ...string) {
	t.Helper()
	chunks := make([]*models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &models.Chunk{DocID: "doc", Ordinal: i, Text: text, Length: len(text)}
	}
	_, err := s.Append(context.Background(), chunks)
	require.NoError(t, err)
}

func TestRetrieve_emptyCorpusSkipsEmbedding(t *testing.T) {
	e := embedding.NewMockEmbedder(testDims)
	engine := NewEngine(newCorpus(t, memIndex(t, testDims), e), e)

	results, err := engine.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, e.Calls())
}

func TestRetrieve_noCorpus(t *testing.T) {
	_, err := NewEngine(nil, embedding.NewMockEmbedder(testDims)).Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestRetrieve_boundedAndSorted(t *testing.T) {
	e := embedding.NewMockEmbedder(testDims)
	s := newCorpus(t, memIndex(t, testDims), e)
	var texts []string
	for i := 0; i < 20; i++ {
		texts = append(texts, fmt.Sprintf("chunk number %d", i))
	}
	appendTexts(t, s, texts...)
	engine := NewEngine(s, e, WithTopK(4))

	for _, k := range []int{1, 3, 7, 50} {
		results, err := engine.Retrieve(context.Background(), "chunk number 7", k)
		require.NoError(t, err)
		want := k
		if want > 20 {
			want = 20
		}
		require.Len(t, results, want)
		assert.Equal(t, 7, results[0].Chunk.ChunkID)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}

	results, err := engine.Retrieve(context.Background(), "chunk number 7", 0)
	require.NoError(t, err)
	assert.Len(t, results, 4, "k <= 0 falls back to the configured top k")
}

func TestRetrieve_dropsBlankAndOutOfRange(t *testing.T) {
	e := embedding.NewMockEmbedder(testDims)
	idx := memIndex(t, testDims)
	// A vector with no metadata record: its position lies past the end of the corpus.
	stray, _ := e.Embed(context.Background(), "stray")
	require.NoError(t, idx.Add(context.Background(), [][]float32{stray}))
	s := newCorpus(t, idx, e)
	appendTexts(t, s, "   ")

	engine := NewEngine(s, e)
	results, err := engine.Retrieve(context.Background(), "stray", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "blank text and out-of-range ids must be discarded")
}

func TestRetrieve_embeddingFailure(t *testing.T) {
	e := embedding.NewMockEmbedder(testDims)
	s := newCorpus(t, memIndex(t, testDims), e)
	appendTexts(t, s, "something")
	e.Err = errors.New("connection refused")

	results, err := NewEngine(s, e).Retrieve(context.Background(), "q", 3)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, embedding.ErrEmbedding)
}

func TestRetrieve_phraseFindsItsChunk(t *testing.T) {
	weather := strings.Repeat("Clouds gather over quiet mountains while gentle rain falls on distant valleys. ", 5)
	cooking := strings.Repeat("Chefs simmer fragrant tomato sauce and knead fresh dough in warm kitchens. ", 5)
	claims := strings.Repeat("The policyholder must report every claim within thirty days of the accident. ", 5)
	doc := strings.TrimSpace(weather) + "\n\n" + strings.TrimSpace(cooking) + "\n\n" + strings.TrimSpace(claims)

	ch, err := chunker.NewChunker(600, 100)
	require.NoError(t, err)
	chunks := ch.Chunk(doc)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Length, 600)
	}

	e := embedding.NewHashingEmbedder(384)
	s := newCorpus(t, memIndex(t, 384), e)
	_, err = s.Append(context.Background(), chunks)
	require.NoError(t, err)

	results, err := NewEngine(s, e).Retrieve(context.Background(), "report every claim within thirty days", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 2, results[0].Chunk.ChunkID)
	for _, r := range results[1:] {
		assert.Less(t, results[0].Score, r.Score)
	}
}
