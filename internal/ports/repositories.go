package ports

import (
	"context"
)

// KeyValueStore is the persistent storage for named records. Values are opaque
// JSON documents. Get returns entities.ErrKeyNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// HealthChecker is implemented by stores backed by a server.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
