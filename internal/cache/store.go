package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/storage"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// Store is the durable video id → ad range cache.
//
// Expiry is lazy: Get may return an entry older than the TTL as long as no
// Put (or sweep) has run since it expired. Eviction only happens as a side
// effect of writes.
type Store struct {
	kv  storage.KV
	ttl time.Duration
	now func() time.Time

	// serializes read-modify-write of the single storage key
	mu sync.Mutex
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Get(ctx context.Context, videoID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := entries[videoID]
	return entry, ok, nil
}

// Snapshot returns a copy of the whole cache.
func (s *Store) Snapshot(ctx context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Put records r for videoID with the current time and then evicts every
// expired entry before returning.
func (s *Store) Put(ctx context.Context, videoID string, r adrange.Range) error {
	if videoID == "" {
		return errs.New(errs.InvalidResult, "empty video id")
	}
	if !r.Valid() {
		return errs.Newf(errs.InvalidResult, "invalid ad range %.3f-%.3f", r.StartTime, r.EndTime).
			WithContext("video", videoID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	entries[videoID] = Entry{Range: r, CreatedAt: s.now()}
	if err := s.save(ctx, entries); err != nil {
		return err
	}
	log.Debug("Cached ad range %.3f-%.3f for video %s", r.StartTime, r.EndTime, videoID)

	_, err = s.evictLocked(ctx)
	return err
}

// EvictExpired removes every entry whose creation time is not strictly newer
// than now minus the TTL, and returns how many were removed.
func (s *Store) EvictExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(ctx)
}

func (s *Store) evictLocked(ctx context.Context) (int, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UnixMilli() - s.ttl.Milliseconds()
	kept := make(map[string]Entry, len(entries))
	for id, entry := range entries {
		if !entry.CreatedAt.IsZero() && entry.CreatedAt.UnixMilli() > cutoff {
			kept[id] = entry
		}
	}

	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, err
	}
	log.Info("Cleaned %d old cache entries (older than %s)", removed, s.ttl)
	return removed, nil
}

func (s *Store) load(ctx context.Context) (map[string]Entry, error) {
	values, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, errs.Wrap(err, errs.Storage, "read ad range cache")
	}

	entries := make(map[string]Entry)
	raw, ok := values[StorageKey]
	if !ok {
		return entries, nil
	}

	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn("Discarding unreadable ad range cache: %v", err)
		return entries, nil
	}
	for id, item := range items {
		var entry Entry
		if err := json.Unmarshal(item, &entry); err != nil {
			log.Warn("Skipping unreadable cache entry for %s: %v", id, err)
			continue
		}
		entries[id] = entry
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries map[string]Entry) error {
	if err := s.kv.Set(ctx, map[string]any{StorageKey: entries}); err != nil {
		return errs.Wrap(err, errs.Storage, "write ad range cache")
	}
	return nil
}
