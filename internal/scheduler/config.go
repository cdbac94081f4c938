package scheduler

import (
	"time"

	"github.com/suscribo/suscribo/internal/config"
)

// Config controls the nightly sweep schedule and batch sizes.
type Config struct {
	Hour       int
	GraceDays  int
	BatchSize  int
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Hour:       2,
		GraceDays:  3,
		BatchSize:  50,
		JobTimeout: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Hour < 0 || c.Hour > 23 {
		c.Hour = defaults.Hour
	}
	if c.GraceDays <= 0 {
		c.GraceDays = defaults.GraceDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Hour:      cfg.SweepHour,
		GraceDays: cfg.SweepGraceDays,
	}.withDefaults()
}
