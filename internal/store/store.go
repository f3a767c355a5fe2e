// Package store provides the key-value persistence layer shared by the rate
// limiter, transcripts, prompts and the parent data bridge.
package store

import (
	"context"
	"time"
)

// Store is a string key-value map with optional per-key expiry.
type Store interface {
	// Get returns the value for key. found is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Put stores value under key. A ttl of zero means the key never expires.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Purger is implemented by backends that need expired keys swept eagerly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
