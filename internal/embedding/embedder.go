// Package embedding provides the text embedding capability: ONNX, OpenAI-compatible HTTP,
// feature hashing, and an LRU cache in front of any of them.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is wrapped by every embedder failure.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text. EmbedBatch returns one vector per input,
// in input order, or an error and no vectors. Name identifies the model, so vectors from
// embedders with different names are not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
	Close() error
}

// Identity names the vector space e produces, e.g. "onnx:all-MiniLM-L6-v2.onnx/384".
func Identity(e Embedder) string {
	return fmt.Sprintf("%s/%d", e.Name(), e.Dimensions())
}

// embedEach implements EmbedBatch on top of Embed.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
