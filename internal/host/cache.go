package host

import (
	"sync"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
)

// ResponseCache keeps every player metadata response seen during the page
// lifetime, keyed by video id, so navigation back to a video can replay it.
type ResponseCache struct {
	mu    sync.RWMutex
	items map[string]*page.PlayerInfo
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{items: make(map[string]*page.PlayerInfo)}
}

func (c *ResponseCache) Put(videoID string, info *page.PlayerInfo) {
	c.mu.Lock()
	c.items[videoID] = info
	c.mu.Unlock()
}

func (c *ResponseCache) Get(videoID string) (*page.PlayerInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.items[videoID]
	return info, ok
}

// RangeMirror is the host's read copy of the durable cache. It is seeded
// by CACHE_SNAPSHOT and extended by each classification.
type RangeMirror struct {
	mu     sync.RWMutex
	ranges map[string]adrange.Range
}

func NewRangeMirror() *RangeMirror {
	return &RangeMirror{ranges: make(map[string]adrange.Range)}
}

// Merge adds the valid entries of ranges. Entries already held locally
// win, since they were classified after the snapshot was taken.
func (m *RangeMirror) Merge(ranges map[string]adrange.Range) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range ranges {
		if _, ok := m.ranges[id]; ok || !r.Valid() {
			continue
		}
		m.ranges[id] = r
	}
}

func (m *RangeMirror) Put(videoID string, r adrange.Range) {
	m.mu.Lock()
	m.ranges[videoID] = r
	m.mu.Unlock()
}

func (m *RangeMirror) Get(videoID string) (adrange.Range, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ranges[videoID]
	return r, ok
}

func (m *RangeMirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ranges)
}
