package config

import (
	"time"
)

// DispatchConfig tunes the request lifecycle machinery rather than any
// transport concern.
type DispatchConfig struct {
	// PendingTTL is how long a request may sit unaccepted before the
	// reaper cancels it.
	PendingTTL time.Duration `yaml:"pending_ttl"`
	// ReaperSchedule is a cron expression for the stale-request sweep.
	ReaperSchedule string `yaml:"reaper_schedule"`
	// FanoutBuffer is the per-subscriber event channel depth.
	FanoutBuffer int `yaml:"fanout_buffer"`
	// Store selects the persistence backend: mongo or memory.
	Store string `yaml:"store"`
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		PendingTTL:     getEnvAsDuration("DISPATCH_PENDING_TTL", 30*time.Minute),
		ReaperSchedule: getEnv("DISPATCH_REAPER_SCHEDULE", "*/1 * * * *"),
		FanoutBuffer:   getEnvAsInt("DISPATCH_FANOUT_BUFFER", 32),
		Store:          getEnv("DISPATCH_STORE", "mongo"),
	}
}
