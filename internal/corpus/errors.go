package corpus

import (
	"errors"
	"fmt"
)

// ErrCorpusCorruption matches every *CorruptionError.
var ErrCorpusCorruption = errors.New("corpus corruption")

// CorruptionError reports persisted artifacts that violate the positional invariant.
// IndexSize or MetadataSize is -1 when that artifact is missing.
type CorruptionError struct {
	IndexSize    int
	MetadataSize int
	Reason       string
	Err          error
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("corpus corruption: %s (index=%d, metadata=%d)", e.Reason, e.IndexSize, e.MetadataSize)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is(err, ErrCorpusCorruption) match.
func (e *CorruptionError) Is(target error) bool { return target == ErrCorpusCorruption }

func (e *CorruptionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed batch embed. Nothing from the batch was appended.
type EmbeddingError struct {
	BatchSize int
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch of %d chunks: %v", e.BatchSize, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
