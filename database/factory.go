package database

import (
	"context"
	"errors"

	"github.com/gaborage/go-bricks-db/config"
	"github.com/gaborage/go-bricks-db/logger"
)

// NewFromConfig creates a Client from the database configuration section. Logger,
// connect timeout and tracking settings come from cfg; opts are applied afterwards
// and win.
func NewFromConfig(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	creds, err := FromConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	all := make([]Option, 0, len(opts)+3)
	all = append(all,
		WithLogger(log),
		WithConnectTimeout(cfg.Database.Timeout.Connect),
		WithTrackingSettings(NewTrackingSettings(&cfg.Database)),
	)
	all = append(all, opts...)

	return NewClient(ctx, creds, all...)
}

// SupportedDriverNames returns the driver values accepted in configuration.
func SupportedDriverNames() []string {
	drivers := SupportedDrivers()
	names := make([]string, len(drivers))
	for i, d := range drivers {
		names[i] = d.String()
	}
	return names
}
