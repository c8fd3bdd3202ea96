package ingest

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when a document yields no text or no chunks.
var ErrEmptyText = errors.New("document has no extractable text")

// ExtractionError reports an ingestion rejected before anything was written: an
// unsupported format or a document with no text.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
