// Package vector provides the similarity index capability: append-only flat L2 indexes whose
// identifiers are insertion positions.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrTruncateRange is returned when Truncate is asked to grow the index.
var ErrTruncateRange = errors.New("truncate position out of range")

// VectorIndex stores vectors in insertion order. The i-th added vector has ID i.
// Search returns up to k hits ordered by ascending squared L2 distance. Truncate drops every
// vector from position n on, undoing the adds that followed.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Truncate(n int) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single nearest-neighbour hit.
type VectorResult struct {
	ID       int64
	Distance float32 // squared L2; lower is closer
}
