package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/recurra/internal/config"
)

// Config controls tick cadence and batch sizes. It is re-read on every tick
// so billing.yml edits apply without a restart.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	TickLockTTL time.Duration
	ItemTimeout time.Duration
	Location    *time.Location
}

func DefaultConfig() Config {
	return fromTunables(config.DefaultBillingConfig().Scheduler)
}

func fromTunables(t config.SchedulerTunables) Config {
	loc := time.UTC
	if name := strings.TrimSpace(t.Timezone); name != "" {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}
	return Config{
		RunInterval: t.RunInterval,
		BatchSize:   t.BatchSize,
		TickLockTTL: t.TickLockTTL,
		ItemTimeout: t.ItemTimeout,
		Location:    loc,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.TickLockTTL <= 0 {
		c.TickLockTTL = defaults.TickLockTTL
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaults.ItemTimeout
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

func (s *Scheduler) currentConfig() Config {
	if s.billing == nil {
		return s.cfg.withDefaults()
	}
	return fromTunables(s.billing.Get().Scheduler).withDefaults()
}
