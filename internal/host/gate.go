package host

import (
	"context"
	"maps"
	"sync"

	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// ConfigGate holds the configuration snapshot delivered by CONFIG. The first
// snapshot is kept for the page lifetime; later ones are ignored.
type ConfigGate struct {
	mu       sync.RWMutex
	cfg      config.UserConfig
	messages map[string]string
	set      bool
	ready    chan struct{}
}

func NewConfigGate() *ConfigGate {
	return &ConfigGate{ready: make(chan struct{})}
}

// Set stores p and releases every Wait. It reports whether p was accepted.
func (g *ConfigGate) Set(p protocol.ConfigPayload) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set {
		log.Debug("Ignoring repeated CONFIG")
		return false
	}
	g.cfg = p.Config
	g.messages = maps.Clone(p.I18n)
	g.set = true
	close(g.ready)
	return true
}

func (g *ConfigGate) Config() (config.UserConfig, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg, g.set
}

// Message returns the localized text for key, or key itself when the
// snapshot has no such entry.
func (g *ConfigGate) Message(key string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if msg, ok := g.messages[key]; ok && msg != "" {
		return msg
	}
	return key
}

// Wait blocks until CONFIG has arrived. It fails with errs.NotInitialized
// when ctx ends first.
func (g *ConfigGate) Wait(ctx context.Context) (config.UserConfig, error) {
	select {
	case <-g.ready:
		cfg, _ := g.Config()
		return cfg, nil
	case <-ctx.Done():
		return config.UserConfig{}, errs.Wrap(ctx.Err(), errs.NotInitialized, "configuration did not arrive")
	}
}
