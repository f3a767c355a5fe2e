package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storeFactory func(t *testing.T, clock *fakeClock) interface {
	Store
	Purger
}

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(_ *testing.T, clock *fakeClock) interface {
			Store
			Purger
		} {
			return NewMemoryWithClock(clock.Now)
		},
		"sqlite": func(t *testing.T, clock *fakeClock) interface {
			Store
			Purger
		} {
			s, err := NewSQLiteWithClock(filepath.Join(t.TempDir(), "kv.db"), clock.Now)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, newFakeClock())

			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Put(ctx, "k", "v1", 0))
			require.NoError(t, s.Put(ctx, "k", "v2", 0))

			v, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v2", v)

			require.NoError(t, s.Delete(ctx, "k"))
			require.NoError(t, s.Delete(ctx, "k"))
			_, found, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Ping(ctx))
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Put(ctx, "short", "x", time.Minute))
			require.NoError(t, s.Put(ctx, "forever", "y", 0))

			clock.Advance(59 * time.Second)
			_, found, err := s.Get(ctx, "short")
			require.NoError(t, err)
			assert.True(t, found)

			clock.Advance(time.Second)
			_, found, err = s.Get(ctx, "short")
			require.NoError(t, err)
			assert.False(t, found, "key must read as absent at its expiry instant")

			n, err := s.PurgeExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			v, found, err := s.Get(ctx, "forever")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "y", v)
		})
	}
}

func TestPutRefreshesExpiry(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Put(ctx, "k", "a", time.Minute))
			clock.Advance(50 * time.Second)
			require.NoError(t, s.Put(ctx, "k", "b", time.Minute))
			clock.Advance(50 * time.Second)

			v, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "b", v)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "prompt:child", "hello", 0))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, found, err := s.Get(ctx, "prompt:child")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)
}

func TestWithBusyRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withBusyRetry(ctx, "op", func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = withBusyRetry(ctx, "op", func() error {
		calls++
		return errors.New("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-conflict errors are not retried")
}

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteConflictError(errors.New("SQLITE_BUSY")))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table")))
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryWithClock(clock.Now)

	require.NoError(t, s.Put(ctx, "a", "1", time.Second))
	require.NoError(t, s.Put(ctx, "b", "2", 0))
	clock.Advance(2 * time.Second)

	sweepOnce(ctx, s)
	assert.Equal(t, 1, s.Len())
}
