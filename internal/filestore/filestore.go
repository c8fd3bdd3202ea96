// Package filestore retains the original uploaded files, keyed {doc_id}_{filename}.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
)

// ErrNotFound is returned when a retained file does not exist.
var ErrNotFound = errors.New("retained file not found")

// Store retains original documents. Save returns a location string that Open and Delete
// accept and that is recorded as the document's stored path.
type Store interface {
	Save(ctx context.Context, docID, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
}

// Backend names.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// New returns the Store selected by cfg.Backend.
func New(ctx context.Context, cfg config.UploadsConfig) (Store, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalStore(cfg.LocalDir)
	case BackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown uploads backend: %s", cfg.Backend)
	}
}

// Key returns the retention key for a document: the doc id, an underscore, and the base
// filename with path separators and spaces replaced.
func Key(docID, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return docID + "_" + name
}
