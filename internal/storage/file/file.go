// Package file implements the storage adapter with one JSON document per blob.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/storage"
)

// Adapter stores each blob as <dir>/<key>.json. Writes go through a temp
// file and rename so a crash mid-write never leaves a truncated blob.
type Adapter struct {
	dir string
}

var _ storage.Adapter = (*Adapter)(nil)

// New creates the state directory if needed and returns a file adapter.
func New(dir string) (*Adapter, error) {
	if dir == "" {
		return nil, errors.New("empty state dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Adapter{dir: dir}, nil
}

// Load reads the blob stored under key.
func (a *Adapter) Load(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(a.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", key, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return b, nil
}

// Save overwrites the blob stored under key.
func (a *Adapter) Save(_ context.Context, key string, data []byte) error {
	dst := a.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("commit blob %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) path(key string) string {
	return filepath.Join(a.dir, key+".json")
}
