// Package file persists the crawl checkpoint as a small JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// Store implements crawl.CheckpointStore on the local filesystem. Saves are
// atomic: the payload is written to a temp file and renamed over the target,
// so a crash mid-write never leaves a torn checkpoint.
type Store struct {
	path string
}

// New creates a Store rooted at path, creating parent directories.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the persisted checkpoint. found is false when no checkpoint
// has been written yet.
func (s *Store) Load(ctx context.Context) (crawl.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return crawl.Checkpoint{}, false, fmt.Errorf("load checkpoint canceled: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return crawl.Checkpoint{}, false, nil
	}
	if err != nil {
		return crawl.Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}
	var cp crawl.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return crawl.Checkpoint{}, false, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	if cp.LastCompletedDay.IsZero() {
		return crawl.Checkpoint{}, false, nil
	}
	return cp, true, nil
}

// Save durably writes the checkpoint before returning.
func (s *Store) Save(ctx context.Context, cp crawl.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save checkpoint canceled: %w", err)
	}
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", s.path, err)
	}
	return nil
}
