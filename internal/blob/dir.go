package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maintsync/maintsync/internal/errs"
)

// Dir keeps attachment payloads as plain files under one directory. This is
// the default store: it works with no network at all.
type Dir struct {
	root string
}

var _ Store = (*Dir)(nil)

// NewDir creates the directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(handle string) string {
	// handles are uuids; Base strips anything path-like anyway
	return filepath.Join(d.root, filepath.Base(handle))
}

func (d *Dir) Put(_ context.Context, handle, _ string, r io.Reader) error {
	tmp := d.path(handle) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write attachment: %w", err)
	}
	if err := os.Rename(tmp, d.path(handle)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write attachment: %w", err)
	}
	return nil
}

func (d *Dir) Get(_ context.Context, handle string) (io.ReadCloser, error) {
	f, err := os.Open(d.path(handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("attachment %s: %w", handle, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return f, nil
}

func (d *Dir) Delete(_ context.Context, handle string) error {
	if err := os.Remove(d.path(handle)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
