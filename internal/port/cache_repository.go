package port

import (
	"context"
	"time"
)

// CacheRepository is a best-effort key-value store with expiry. Callers treat
// errors as a cache miss.
type CacheRepository interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	HasKey(ctx context.Context, key string) (bool, error)

	// SetIfAbsent sets key only if it does not exist, returns false if it already exists
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error
}
