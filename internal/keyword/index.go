// Package keyword provides a lexical clause index over corpus chunks. It serves lookups by
// term and never takes part in answer retrieval.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions optional parameters for clause search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution of matches in the section title.
	// Values > 1 favour clauses whose heading matches. Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (default 1).
	FuzzyEnabled bool
	Fuzziness    int
}

// KeywordIndex indexes chunks by chunk id.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single clause hit.
type KeywordResult struct {
	ChunkID int
	Score   float64
}
