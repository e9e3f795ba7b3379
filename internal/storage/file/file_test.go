package file

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/storage"
)

func TestAdapter_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = a.Load(ctx, storage.KeyAccounts)
	require.True(t, errors.Is(err, errs.ErrNotFound), "missing blob should map to ErrNotFound, got %v", err)

	require.NoError(t, a.Save(ctx, storage.KeyAccounts, []byte(`[{"id":1}]`)))
	got, err := a.Load(ctx, storage.KeyAccounts)
	require.NoError(t, err)
	require.Equal(t, []byte(`[{"id":1}]`), got)

	// whole-blob overwrite
	require.NoError(t, a.Save(ctx, storage.KeyAccounts, []byte(`[]`)))
	got, err = a.Load(ctx, storage.KeyAccounts)
	require.NoError(t, err)
	require.Equal(t, []byte(`[]`), got)
}

func TestAdapter_KeysIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, storage.KeyOrders, []byte("orders")))
	_, err = a.Load(ctx, storage.KeyQueue)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestNew_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}
