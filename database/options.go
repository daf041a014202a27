package database

import (
	"time"

	"github.com/gaborage/go-bricks-db/database/internal/tracking"
	"github.com/gaborage/go-bricks-db/logger"
)

// TrackingSettings controls statement tracking. See NewTrackingSettings.
type TrackingSettings = tracking.Settings

// NewTrackingSettings builds TrackingSettings from the database configuration section.
var NewTrackingSettings = tracking.NewSettings

// Re-export tracking defaults
const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)

// DefaultConnectTimeout bounds each dial unless WithConnectTimeout says otherwise.
const DefaultConnectTimeout = 10 * time.Second

type options struct {
	log            logger.Logger
	notifier       Notifier
	opener         Opener
	connectTimeout time.Duration
	tracking       TrackingSettings
}

func defaultOptions() options {
	return options{
		log:            logger.Nop(),
		notifier:       nopNotifier{},
		opener:         DefaultOpener(),
		connectTimeout: DefaultConnectTimeout,
		tracking:       tracking.NewSettings(nil),
	}
}

// Option customizes an Adapter or Client.
type Option func(*options)

// WithLogger sets the logger for connection and statement logging.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithNotifier sets the receiver of connection lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithOpener replaces the database opener.
func WithOpener(op Opener) Option {
	return func(o *options) {
		if op != nil {
			o.opener = op
		}
	}
}

// WithConnectTimeout bounds each dial. Zero disables the bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// WithTrackingSettings sets slow statement and parameter logging behavior.
func WithTrackingSettings(s TrackingSettings) Option {
	return func(o *options) {
		o.tracking = s
	}
}
