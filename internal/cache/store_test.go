package cache

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *fakeClock) (*Store, *storage.SQLiteKV) {
	t.Helper()
	kv, err := storage.NewSQLiteKV(filepath.Join(t.TempDir(), "adskip.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv, WithClock(clock.Now)), kv
}

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: base}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "BV1ad", adrange.Range{StartTime: 2.5, EndTime: 10}))

	entry, ok, err := store.Get(ctx, "BV1ad")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, adrange.Range{StartTime: 2.5, EndTime: 10}, entry.Range)
	assert.Equal(t, base.UnixMilli(), entry.CreatedAt.UnixMilli())

	_, ok, err = store.Get(ctx, "BV1missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, &fakeClock{now: time.Now()})
	ctx := context.Background()

	err := store.Put(ctx, "BV1", adrange.Range{StartTime: 5, EndTime: 5})
	assert.True(t, errs.Is(err, errs.InvalidResult))

	err = store.Put(ctx, "", adrange.Range{StartTime: 1, EndTime: 5})
	assert.True(t, errs.Is(err, errs.InvalidResult))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestStore_PutEvictsAtTTLBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	clock.Set(now.Add(-(DefaultTTL + time.Millisecond)))
	require.NoError(t, store.Put(ctx, "BVexpired", adrange.Range{StartTime: 1, EndTime: 2}))

	clock.Set(now.Add(-(DefaultTTL - time.Millisecond)))
	require.NoError(t, store.Put(ctx, "BVfresh", adrange.Range{StartTime: 1, EndTime: 2}))

	// lazy expiry: nothing has been written since BVexpired crossed the TTL
	clock.Set(now)
	_, ok, err := store.Get(ctx, "BVexpired")
	require.NoError(t, err)
	assert.True(t, ok, "expired entries stay readable until the next write")

	require.NoError(t, store.Put(ctx, "BVnew", adrange.Range{StartTime: 3, EndTime: 4}))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snapshot, "BVexpired")
	assert.Contains(t, snapshot, "BVfresh")
	assert.Contains(t, snapshot, "BVnew")
}

func TestStore_CustomTTL(t *testing.T) {
	t.Parallel()

	kv, err := storage.NewSQLiteKV(filepath.Join(t.TempDir(), "adskip.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := NewStore(kv, WithClock(clock.Now), WithTTL(time.Hour))
	assert.Equal(t, time.Hour, store.TTL())
	assert.Equal(t, DefaultTTL, NewStore(kv, WithTTL(0)).TTL())

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "BVa", adrange.Range{StartTime: 1, EndTime: 2}))

	clock.Set(start.Add(59 * time.Minute))
	removed, err := store.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	clock.Set(start.Add(time.Hour))
	removed, err = store.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStore_EvictExpiredCountsRemoved(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "BVa", adrange.Range{StartTime: 1, EndTime: 2}))
	require.NoError(t, store.Put(ctx, "BVb", adrange.Range{StartTime: 1, EndTime: 2}))

	clock.Set(start.Add(DefaultTTL))
	removed, err := store.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = store.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_DropsEntriesWithoutCreationStamp(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store, kv := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]any{
		StorageKey: map[string]any{
			"BVlegacy": map[string]any{"startTime": 1, "endTime": 2},
		},
	}))
	require.NoError(t, store.Put(ctx, "BVnew", adrange.Range{StartTime: 1, EndTime: 2}))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snapshot, "BVlegacy")
	assert.Contains(t, snapshot, "BVnew")
}

func TestStore_StoredShape(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	store, kv := newTestStore(t, &fakeClock{now: created})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "BV1", adrange.Range{StartTime: 2.5, EndTime: 10}))

	values, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"BV1":{"startTime":2.5,"endTime":10,"createAt":`+strconv.FormatInt(created.UnixMilli(), 10)+`}}`,
		string(values[StorageKey]))
}

func TestSweeper(t *testing.T) {
	store := NewStore(nil)

	s, err := NewSweeper(store, "")
	require.NoError(t, err)
	assert.Nil(t, s)
	s.Start()
	s.Stop()

	_, err = NewSweeper(store, "not a schedule")
	assert.Error(t, err)

	s, err = NewSweeper(store, "@hourly")
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Start()
	s.Stop()
}
