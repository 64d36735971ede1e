// Package config loads and validates process configuration from the
// environment, the way the teacher's config package does (caarlos0/env
// struct tags + go-playground/validator). Any value of unexpected type
// or that fails validation aborts startup, per spec.md §5.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config covers every key spec.md §6 enumerates.
type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Endpoint host/port per endpoint (spec.md §6 reference assignment).
	RatingHost         string `env:"RATING_HOST" envDefault:""`
	RatingPort         int    `env:"RATING_PORT" envDefault:"8010" validate:"min=1,max=65535"`
	ScanDispatchHost   string `env:"SCAN_DISPATCH_HOST" envDefault:""`
	ScanDispatchPort   int    `env:"SCAN_DISPATCH_PORT" envDefault:"8020" validate:"min=1,max=65535"`
	NotifyHost         string `env:"NOTIFY_HOST" envDefault:""`
	NotifyPort         int    `env:"NOTIFY_PORT" envDefault:"8030" validate:"min=1,max=65535"`
	ReviewDispatchHost string `env:"REVIEW_DISPATCH_HOST" envDefault:""`
	ReviewDispatchPort int    `env:"REVIEW_DISPATCH_PORT" envDefault:"8040" validate:"min=1,max=65535"`

	AdminPort string `env:"ADMIN_PORT" envDefault:"9090"`

	// Cache/expiry policy (days), spec.md §4.3.
	DomainExpirationDays  int `env:"DOMAIN_EXPIRATION_DAYS" envDefault:"1" validate:"min=0"`
	RequestExpirationDays int `env:"REQUEST_EXPIRATION_DAYS" envDefault:"1" validate:"min=0"`

	// Dispatch pull timeout, seconds.
	DispatchPullTimeoutSec int `env:"DISPATCH_PULL_TIMEOUT_SEC" envDefault:"1" validate:"min=1,max=60"`

	// Retry queue / watchdog.
	RerunQueueCheckDelaySec int   `env:"RERUN_QUEUE_CHECK_DELAY_SEC" envDefault:"10" validate:"min=1"`
	RerunCounterMax         int   `env:"RERUN_COUNTER_MAX" envDefault:"10" validate:"min=1"`
	RerunThresholdsMin      []int `env:"RERUN_THRESHOLDS_MIN" envDefault:"1,5,10,30,60" validate:"min=1,dive,min=1"`

	// Excluded modules.
	Norun []string `env:"NORUN" envDefault:"MXToolbox,Nmap,Traceroute"`

	// Per-module configuration, spec.md §6: a shared API key slot real
	// probe implementations would read, and the rate limit every
	// module's outbound calls share (internal/moduleutil.Limiter).
	ModuleAPIKey          string  `env:"MODULE_API_KEY" envDefault:""`
	ModuleRateLimitPerSec float64 `env:"MODULE_RATE_LIMIT_PER_SEC" envDefault:"5" validate:"min=0.1"`
	ModuleRateLimitBurst  int     `env:"MODULE_RATE_LIMIT_BURST" envDefault:"10" validate:"min=1"`

	// Snapshot paths.
	ScanQueueSnapshotPath   string `env:"SCAN_QUEUE_SNAPSHOT_PATH" envDefault:"./resources/scan_queue.snapshot"`
	ReviewQueueSnapshotPath string `env:"REVIEW_QUEUE_SNAPSHOT_PATH" envDefault:"./resources/review_queue.snapshot"`
	RetryQueueSnapshotPath  string `env:"RETRY_QUEUE_SNAPSHOT_PATH" envDefault:"./resources/retry_queue.snapshot"`

	// PID files, one per process.
	CoordinatorPIDPath string `env:"COORDINATOR_PID_PATH" envDefault:"./resources/coordinator.pid"`
	ScannerPIDPath     string `env:"SCANNER_PID_PATH" envDefault:"./resources/scanner.pid"`
	ReviewerPIDPath    string `env:"REVIEWER_PID_PATH" envDefault:"./resources/reviewer.pid"`

	// Coordinator address scanners/reviewers dial.
	CoordinatorDialHost string `env:"COORDINATOR_DIAL_HOST" envDefault:"localhost"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NorunSet returns Norun as a lookup set.
func (c *Config) NorunSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Norun))
	for _, m := range c.Norun {
		set[strings.TrimSpace(m)] = struct{}{}
	}
	return set
}
