package alerts

import (
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned when engine is constructed with bad parameters
var ErrInvalidConfig = errors.New("invalid alert configuration")

// Config holds alert thresholds
type Config struct {
	// Entries within BurstWindow needed for burst alert. Default 5
	BurstThreshold int
	// Trailing window for burst detection. Default 10s
	BurstWindow time.Duration
	// Occupancy strictly above this value raises alert. Default 50
	OccupancyLimit int
	// Minimum time between two alerts of the same kind. Default 15s
	Cooldown time.Duration
	// Number of recent alerts kept for reporting. Default 10
	RecentLimit int
}

// DefaultConfig returns default thresholds
func DefaultConfig() Config {
	return Config{
		BurstThreshold: 5,
		BurstWindow:    10 * time.Second,
		OccupancyLimit: 50,
		Cooldown:       15 * time.Second,
		RecentLimit:    10,
	}
}

// Validate checks that every threshold, window and limit is positive
func (cfg Config) Validate() error {
	if cfg.BurstThreshold <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "burst threshold must be positive, got %d", cfg.BurstThreshold)
	}
	if cfg.BurstWindow <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "burst window must be positive, got %s", cfg.BurstWindow)
	}
	if cfg.OccupancyLimit <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "occupancy limit must be positive, got %d", cfg.OccupancyLimit)
	}
	if cfg.Cooldown <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "cooldown must be positive, got %s", cfg.Cooldown)
	}
	if cfg.RecentLimit <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "recent limit must be positive, got %d", cfg.RecentLimit)
	}
	return nil
}
