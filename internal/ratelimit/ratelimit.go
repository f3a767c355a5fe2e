// Package ratelimit implements a per-client request limiter whose windows
// live in the shared key-value store, so limits hold across instances.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/dreamtales/internal/store"
)

const keyPrefix = "rate_limit:"

// Limiter keeps, per client, the timestamps of accepted requests inside the
// current window. Pruning happens on every check.
type Limiter struct {
	kv       store.Store
	limit    int
	window   time.Duration
	failOpen bool
	now      func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithFailOpen sets the verdict used when the store cannot be read or written.
func WithFailOpen(failOpen bool) Option {
	return func(l *Limiter) { l.failOpen = failOpen }
}

// New creates a limiter allowing limit requests per window.
func New(kv store.Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		kv:       kv,
		limit:    limit,
		window:   window,
		failOpen: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured request count per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow reports whether clientID may make another request now. A denied
// attempt is not recorded. When the store fails, Allow returns the
// configured fail-open verdict together with the error.
func (l *Limiter) Allow(ctx context.Context, clientID string) (bool, error) {
	key := keyPrefix + clientID
	now := l.now()
	cutoff := now.Add(-l.window).UnixMilli()

	raw, found, err := l.kv.Get(ctx, key)
	if err != nil {
		return l.failOpen, fmt.Errorf("read rate window: %w", err)
	}

	var stamps []int64
	if found {
		if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
			// A corrupt window is treated as empty and overwritten below.
			stamps = nil
		}
	}

	recent := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		return false, nil
	}

	recent = append(recent, now.UnixMilli())
	data, err := json.Marshal(recent)
	if err != nil {
		return l.failOpen, fmt.Errorf("encode rate window: %w", err)
	}
	if err := l.kv.Put(ctx, key, string(data), l.ttl()); err != nil {
		return l.failOpen, fmt.Errorf("write rate window: %w", err)
	}
	return true, nil
}

// ttl rounds the window up to whole seconds.
func (l *Limiter) ttl() time.Duration {
	secs := (l.window + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
