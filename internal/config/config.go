// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig so callers can errors.Is them.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// Env names the deployment (development, production); reported to Sentry.
	Env string `koanf:"env"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the ledger backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver-specific data source: a file path for sqlite,
	// a connection URL for postgres.
	DBDSN string `koanf:"db_dsn"`

	// ModelPath and LabelsPath locate the image classifier and its labels.
	ModelPath  string `koanf:"model_path"`
	LabelsPath string `koanf:"labels_path"`

	// ConfidenceThreshold is the minimum classifier confidence (percent,
	// inclusive) for a camera photo to earn points.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// MotionThreshold is the accumulated luminance difference a video must
	// strictly exceed to be considered live.
	MotionThreshold int64 `koanf:"motion_threshold"`

	// MotionMaxFrames bounds how many frames after the reference are compared.
	MotionMaxFrames int `koanf:"motion_max_frames"`

	// FFmpegPath and FFprobePath locate the video decoding tools.
	FFmpegPath  string `koanf:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path"`

	// MaxUploadMB caps the multipart body size of a submission.
	MaxUploadMB int `koanf:"max_upload_mb"`

	// PendingTTLSeconds is how long an unconfirmed evaluation stays confirmable.
	PendingTTLSeconds int `koanf:"pending_ttl_seconds"`

	// PendingSize bounds the number of unconfirmed evaluations held in memory.
	PendingSize int `koanf:"pending_size"`

	// DedupeSize sets the size of the confirm deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RewardThreshold is the balance at which a user qualifies for a reward.
	RewardThreshold int64 `koanf:"reward_threshold"`

	// SentryDSN enables error reporting when non-empty.
	SentryDSN string `koanf:"sentry_dsn"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		Env:                 "development",
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBDriver:            DriverSQLite,
		DBDSN:               "ecotogether.db",
		ModelPath:           "model.tflite",
		LabelsPath:          "labels.txt",
		ConfidenceThreshold: 60.0,
		MotionThreshold:     1_000_000,
		MotionMaxFrames:     10,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		MaxUploadMB:         64,
		PendingTTLSeconds:   900,
		PendingSize:         10_000,
		DedupeSize:          100_000,
		RewardThreshold:     500,
	}
}

// PendingTTL returns PendingTTLSeconds as a duration.
func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSeconds) * time.Second
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: db_driver %q must be %s or %s", ErrInvalidConfig, c.DBDriver, DriverSQLite, DriverPostgres)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("%w: confidence_threshold must be within [0,100], got %v", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("%w: motion_threshold must not be negative", ErrInvalidConfig)
	}
	if c.MotionMaxFrames <= 0 {
		return fmt.Errorf("%w: motion_max_frames must be positive", ErrInvalidConfig)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalidConfig)
	}
	if c.PendingTTLSeconds <= 0 || c.PendingSize <= 0 || c.DedupeSize <= 0 {
		return fmt.Errorf("%w: pending_ttl_seconds, pending_size and dedupe_size must be positive", ErrInvalidConfig)
	}
	if c.DedupeSize < c.PendingSize {
		return fmt.Errorf("%w: dedupe_size %d must be at least pending_size %d", ErrInvalidConfig, c.DedupeSize, c.PendingSize)
	}
	if c.RewardThreshold <= 0 {
		return fmt.Errorf("%w: reward_threshold must be positive", ErrInvalidConfig)
	}
	return nil
}
