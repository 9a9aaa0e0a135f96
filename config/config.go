// Package config reads settings from environment variables and an optional .env file
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/LdDl/linecount-go/alerts"
	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/mot"
)

// Config is the full binary configuration
type Config struct {
	Line    crossing.Line
	Tracker mot.TrackerConfig
	Alerts  alerts.Config

	// How often alerts are re-evaluated between frames
	RecheckInterval time.Duration

	// Storage
	EventLogPath string
	SQLitePath   string // empty disables SQLite mirror

	// NATS. Empty URL disables publishing
	NatsURL            string
	NatsSubjectPrefix  string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int

	// HTTP API. Empty address disables server
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load reads .env files (default ".env") if present, then environment variables, and validates result.
// Variables already set in the environment take precedence over .env values.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	orientation, err := crossing.ParseOrientation(getEnv("LINE_ORIENTATION", "horizontal"))
	if err != nil {
		return nil, errors.Wrap(err, "LINE_ORIENTATION")
	}
	assignment, err := mot.ParseAssignmentPolicy(getEnv("TRACK_ASSIGNMENT", "greedy"))
	if err != nil {
		return nil, errors.Wrap(err, "TRACK_ASSIGNMENT")
	}
	defaultLine := crossing.DefaultLine()
	defaultTracker := mot.DefaultTrackerConfig()
	defaultAlerts := alerts.DefaultConfig()

	cfg := &Config{
		Line: crossing.Line{
			Orientation: orientation,
			Position:    getEnvInt("LINE_POSITION", defaultLine.Position),
			Hysteresis:  getEnvInt("LINE_HYSTERESIS", defaultLine.Hysteresis),
			Latch:       getEnvBool("LINE_LATCH", false),
		},
		Tracker: mot.TrackerConfig{
			MaxDistance: getEnvFloat("TRACK_MAX_DISTANCE", defaultTracker.MaxDistance),
			MaxMissed:   getEnvInt("TRACK_MAX_MISSED", defaultTracker.MaxMissed),
			HistoryLen:  getEnvInt("TRACK_HISTORY", defaultTracker.HistoryLen),
			Assignment:  assignment,
			Dt:          defaultTracker.Dt,
		},
		Alerts: alerts.Config{
			BurstThreshold: getEnvInt("BURST_THRESHOLD", defaultAlerts.BurstThreshold),
			BurstWindow:    getEnvDuration("BURST_WINDOW", defaultAlerts.BurstWindow),
			OccupancyLimit: getEnvInt("OCCUPANCY_LIMIT", defaultAlerts.OccupancyLimit),
			Cooldown:       getEnvDuration("ALERT_COOLDOWN", defaultAlerts.Cooldown),
			RecentLimit:    getEnvInt("ALERT_RECENT_LIMIT", defaultAlerts.RecentLimit),
		},
		RecheckInterval: getEnvDuration("RECHECK_INTERVAL", time.Second),

		EventLogPath: getEnv("EVENT_LOG_PATH", "alerts_log.csv"),
		SQLitePath:   getEnv("SQLITE_PATH", ""),

		NatsURL:            getEnv("NATS_URL", ""),
		NatsSubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "linecount"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 5*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", 60),

		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every component configuration
func (cfg *Config) Validate() error {
	if err := cfg.Line.Validate(); err != nil {
		return err
	}
	if err := cfg.Tracker.Validate(); err != nil {
		return err
	}
	if err := cfg.Alerts.Validate(); err != nil {
		return err
	}
	if cfg.RecheckInterval <= 0 {
		return errors.Errorf("RECHECK_INTERVAL must be positive, got %s", cfg.RecheckInterval)
	}
	if cfg.EventLogPath == "" {
		return errors.New("EVENT_LOG_PATH must not be empty")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", cfg.ShutdownTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("Can't parse integer, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Float64("default", defaultValue).Msg("Can't parse float, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		// Bare numbers are seconds
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Can't parse duration, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Bool("default", defaultValue).Msg("Can't parse bool, using default")
	}
	return defaultValue
}
