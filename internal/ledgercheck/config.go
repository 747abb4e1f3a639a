// Package ledgercheck hammers a ledger with concurrent awards and verifies
// that no increment was lost.
package ledgercheck

import (
	"errors"
	"time"
)

// Defaults for a check run.
const (
	DefaultAwards  = 1000
	DefaultUsers   = 1
	DefaultWorkers = 32
	DefaultReason  = "ledger-check"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid ledger-check config")
	ErrMismatch      = errors.New("ledger mismatch")
)

// Config holds configuration for a check run.
type Config struct {
	Awards  int    // Awards per user
	Users   int    // Distinct usernames written concurrently
	Workers int    // Concurrent award calls
	Prefix  string // Username prefix; a random suffix keeps runs apart
	Reason  string // Transaction reason
}

// Report summarizes a run.
type Report struct {
	Users        []string
	Awards       int
	Failed       int
	Duration     time.Duration
	AwardsPerSec float64
}

func (c *Config) normalize() error {
	if c.Awards <= 0 || c.Users <= 0 || c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.Prefix == "" {
		c.Prefix = "check"
	}
	if c.Reason == "" {
		c.Reason = DefaultReason
	}
	return nil
}
