package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/subtitle-adskip/pkg/icron"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// Sweeper runs EvictExpired on a cron schedule, in addition to the eviction
// every Put already performs. It is off unless a schedule is configured.
type Sweeper struct {
	store *Store
	cron  *cron.Cron
	expr  string
}

// NewSweeper validates expr (standard 5-field cron syntax or a descriptor
// such as "@hourly"). An empty expr returns (nil, nil): no proactive sweep.
func NewSweeper(store *Store, expr string) (*Sweeper, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	schedule, err := icron.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule: %w", err)
	}

	s := &Sweeper{
		store: store,
		cron:  cron.New(),
		expr:  expr,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.sweep))
	return s, nil
}

func (s *Sweeper) sweep() {
	removed, err := s.store.EvictExpired(context.Background())
	if err != nil {
		log.Error("Scheduled cache sweep failed: %v", err)
		return
	}
	log.Debug("Scheduled cache sweep removed %d entries", removed)
}

func (s *Sweeper) Start() {
	if s == nil {
		return
	}
	if info, err := icron.GetTriggerInfo(s.expr, time.Now()); err == nil {
		log.Info("Cache sweep scheduled with %q, next run in %s", s.expr, info.TimeUntilNext.Round(time.Second))
	}
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}
