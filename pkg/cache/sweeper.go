package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs a sweep every minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically calls [TokenCache.EvictStaleEntries]. Overlapping
// runs are skipped.
type Sweeper struct {
	cache    *TokenCache
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSchedule sets a cron spec or descriptor such as "@every 30s".
func WithSchedule(spec string) SweeperOption {
	return func(s *Sweeper) { s.schedule = spec }
}

// WithSweeperLogger sets the logger used to report evictions.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper returns a stopped sweeper for c.
func NewSweeper(c *TokenCache, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		cache:    c,
		schedule: DefaultSweepSchedule,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep. Starting a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("cache: invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.running = true
	return nil
}

// Sweep evicts stale entries once.
func (s *Sweeper) Sweep() {
	if n := s.cache.EvictStaleEntries(); n > 0 {
		s.logger.Debug("cache: evicted stale tokens", "evicted", n, "remaining", s.cache.Size())
	}
}

// Stop halts scheduling and waits for a running sweep to finish or for ctx
// to end. Stopping a stopped sweeper is a no-op.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	done := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
