// Package storage defines the durable blob adapter implemented by concrete backends.
package storage

import "context"

// Blob keys owned by the store and the sync queue. The adapter performs
// whole-blob overwrite, not partial patch; concurrent writers across
// processes are out of scope.
const (
	KeyAccounts = "accounts"
	KeyOrders   = "orders"
	KeyQueue    = "queue"
)

// Adapter provides durable read/write of named blobs. Load returns
// errs.ErrNotFound when the key has never been written; callers treat that,
// and any decode failure, as the bootstrap case and fall back to seed state.
type Adapter interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
