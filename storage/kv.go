package storage

import "context"

// KV is the key-value medium a Store persists into. Get returns
// matcherrors.ErrNotFound when the key is absent; every other failure wraps
// matcherrors.ErrStorageUnavailable.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Ensure every backend implements KV at compile time.
var (
	_ KV = (*MemoryKV)(nil)
	_ KV = (*FileKV)(nil)
	_ KV = (*SQLKV)(nil)
	_ KV = (*PGKV)(nil)
)
