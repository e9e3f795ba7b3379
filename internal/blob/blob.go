// Package blob stores work-order attachment content out of band, keyed by
// the handle recorded on the attachment. The orders blob keeps metadata
// only; bytes live here.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/gofrs/uuid/v5"
)

// Store is the attachment payload store.
type Store interface {
	Put(ctx context.Context, handle, mediaType string, r io.Reader) error
	Get(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// NewHandle mints an opaque attachment handle.
func NewHandle() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate attachment handle: %w", err)
	}
	return id.String(), nil
}
