package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/models"
)

// writeAtomic writes a file through a temporary sibling and renames it into place.
func writeAtomic(path string, write func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// metadataArtifact is the on-disk metadata sequence. Embedder identifies the vector space of
// the paired index artifact.
type metadataArtifact struct {
	Embedder string          `json:"embedder"`
	Chunks   []*models.Chunk `json:"chunks"`
}

func writeMetadata(path, embedder string, chunks []*models.Chunk) error {
	return writeAtomic(path, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("create metadata file: %w", err)
		}
		if chunks == nil {
			chunks = []*models.Chunk{}
		}
		if err := json.NewEncoder(f).Encode(metadataArtifact{Embedder: embedder, Chunks: chunks}); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("sync metadata file: %w", err)
		}
		return f.Close()
	})
}

func readMetadata(path string) (*metadataArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta metadataArtifact
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
