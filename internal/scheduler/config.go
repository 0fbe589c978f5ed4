package scheduler

import (
	"time"

	appconfig "github.com/sublyhq/subly/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	BatchSize        int
	PaymentBatchSize int
	JobTimeout       time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      time.Minute,
		BatchSize:        100,
		PaymentBatchSize: 200,
		JobTimeout:       30 * time.Second,
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
	if c.PaymentBatchSize <= 0 {
		c.PaymentBatchSize = defaults.PaymentBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ProvideConfig maps application config onto scheduler config.
func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval:      cfg.Scheduler.RunInterval,
		BatchSize:        cfg.Scheduler.BatchSize,
		PaymentBatchSize: cfg.Scheduler.PaymentBatchSize,
		JobTimeout:       cfg.Scheduler.JobTimeout,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
	}
}
