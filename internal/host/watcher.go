package host

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// DefaultPollInterval is how often the watcher looks at the address bar.
const DefaultPollInterval = 300 * time.Millisecond

// Watcher notices in-page navigation between videos. On every change it
// cleans up the page and replays the cached metadata response of the new
// video, if one was seen.
type Watcher struct {
	loc       Location
	responses *ResponseCache
	ui        UI
	interval  time.Duration
	dispatch  func(videoID string, info *page.PlayerInfo)

	mu      sync.Mutex
	current string
}

func NewWatcher(loc Location, responses *ResponseCache, ui UI, interval time.Duration, dispatch func(string, *page.PlayerInfo)) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w := &Watcher{
		loc:       loc,
		responses: responses,
		ui:        ui,
		interval:  interval,
		dispatch:  dispatch,
	}
	if path := loc.Path(); page.IsVideoPath(path) {
		w.current = page.VideoIDFromPath(path)
		log.Info("Initial video ID: %s", w.current)
	}
	return w
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check runs one poll.
func (w *Watcher) Check() {
	path := w.loc.Path()
	if !page.IsVideoPath(path) {
		return
	}
	id := page.VideoIDFromPath(path)

	w.mu.Lock()
	if id == "" || id == w.current {
		w.mu.Unlock()
		return
	}
	previous := w.current
	w.current = id
	w.mu.Unlock()

	log.Info("URL changed: %s -> %s", previous, id)
	w.ui.Cleanup()

	info, ok := w.responses.Get(id)
	if !ok {
		log.Debug("Cache miss for %s, cleaned up only", id)
		return
	}
	log.Info("Processing %s from cached response", id)
	w.dispatch(id, info)
}

func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
