// Package chunker splits extracted document text into overlapping, size-bounded chunks
// and annotates each with structural metadata.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// DefaultSeparators are tried in order; a trailing per-character split is always implied.
var DefaultSeparators = []string{"\n\n", "\n", ".", "!", "?", " "}

var (
	ErrInvalidSize    = errors.New("chunk size must be positive")
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Chunker is a recursive character splitter. Sizes are measured in characters (runes).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	logger       *zap.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger used to report chunking failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) {
		c.logger = l
	}
}

// WithSeparators replaces DefaultSeparators.
func WithSeparators(seps []string) Option {
	return func(c *Chunker) {
		c.separators = append([]string(nil), seps...)
	}
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int, opts ...Option) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, chunkOverlap, chunkSize)
	}
	c := &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text and annotates every piece. Ordinal is the position within this text;
// ChunkID, DocID and Filename are left for the caller. Never panics: an internal failure
// is logged and yields nil.
func (c *Chunker) Chunk(text string) (chunks []*models.Chunk) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Failed to chunk text", zap.Any("panic", r))
			chunks = nil
		}
	}()

	pieces := c.Split(text)
	if len(pieces) == 0 {
		return nil
	}
	chunks = make([]*models.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, &models.Chunk{
			Ordinal:       i,
			Text:          p,
			Length:        utf8.RuneCountInString(p),
			ChunkMetadata: ExtractMetadata(p),
		})
	}
	c.logger.Debug("Created chunks", zap.Int("count", len(chunks)))
	return chunks
}

// Split returns the trimmed, non-empty chunks of text, each at most chunkSize runes.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seps := make([]string, 0, len(c.separators)+1)
	seps = append(seps, c.separators...)
	return c.splitRecursive(text, append(seps, ""))
}

func (c *Chunker) splitRecursive(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, s := range splitKeep(text, separator) {
		if runeLen(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			out = append(out, s)
		} else {
			out = append(out, c.splitRecursive(s, next)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge greedily concatenates splits up to chunkSize, carrying up to chunkOverlap runes of
// trailing splits into the next chunk. Splits already hold their separators.
func (c *Chunker) merge(splits []string) []string {
	var docs, current []string
	total := 0
	for _, d := range splits {
		n := runeLen(d)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := joinTrim(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += n
	}
	if doc := joinTrim(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeep splits after each sep, so every piece ends with the separator that closed it and
// the pieces concatenate back to text. An empty sep splits per rune.
func splitKeep(text, sep string) []string {
	if sep == "" {
		parts := make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	var parts []string
	for _, p := range strings.SplitAfter(text, sep) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func joinTrim(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
