// Package tracking records every database statement attempt as an OpenTelemetry span,
// a pair of metrics and a structured log line, with slow-statement detection.
package tracking

import (
	"time"

	"github.com/gaborage/go-bricks-db/config"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow query detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum query length for logging
	DefaultMaxQueryLength = 1000
)

// Settings holds configuration for statement tracking and logging.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool
}

// NewSettings creates Settings populated from the provided database configuration.
// If cfg is nil or a numeric field is non-positive, DefaultSlowQueryThreshold and
// DefaultMaxQueryLength are used.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
	}

	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}
	settings.logQueryParameters = cfg.Query.Log.Parameters

	return settings
}

// SlowQueryThreshold returns the threshold for slow query detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// MaxQueryLength returns the maximum query length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}

// LogQueryParameters returns whether query parameters should be logged
func (s Settings) LogQueryParameters() bool {
	return s.logQueryParameters
}
