package embedding

import (
	"context"
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/pkg/utils"
)

var hashingTokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashingEmbedder maps text to a signed bag-of-words vector using the hashing trick.
// It needs no model files, so it is the fallback when ONNX is unavailable. Texts sharing
// words end up closer in L2 than texts that share none.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a HashingEmbedder of the given dimension.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the unit-normalized hashed term vector of text. Text without tokens maps
// to the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, tok := range hashingTokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := HashString(tok)
		sign := float32(1)
		if HashString("#"+tok)&1 == 1 {
			sign = -1
		}
		emb[h%uint32(e.dimensions)] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds texts in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// Name returns "hashing".
func (e *HashingEmbedder) Name() string { return "hashing" }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
