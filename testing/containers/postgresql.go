//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-db/database"
)

// PostgreSQLConfig holds configuration for the PostgreSQL test container.
type PostgreSQLConfig struct {
	// ImageTag specifies the PostgreSQL version (default: "17-alpine")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout for container initialization (default: 60 seconds)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLConfig returns the configuration used when none is given.
func DefaultPostgreSQLConfig() PostgreSQLConfig {
	return PostgreSQLConfig{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQL is a running PostgreSQL container.
type PostgreSQL struct {
	cfg  PostgreSQLConfig
	host string
	port uint16
}

// StartPostgreSQL starts a PostgreSQL container that is terminated when the test ends.
// The test is skipped when Docker is unavailable and fails when startup fails.
func StartPostgreSQL(ctx context.Context, t *testing.T, cfg *PostgreSQLConfig) *PostgreSQL {
	t.Helper()
	skipWithoutDocker(ctx, t)

	c := DefaultPostgreSQLConfig()
	if cfg != nil {
		c = *cfg
	}

	container, err := postgres.Run(ctx,
		"postgres:"+c.ImageTag,
		postgres.WithDatabase(c.Database),
		postgres.WithUsername(c.Username),
		postgres.WithPassword(c.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2). // Postgres restarts after initial setup
				WithStartupTimeout(c.StartupTimeout),
		),
	)
	if container != nil {
		terminateOnCleanup(t, "PostgreSQL", container)
	}
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get PostgreSQL host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get PostgreSQL port: %v", err)
	}

	t.Logf("PostgreSQL container started at %s:%s", host, mapped.Port())
	return &PostgreSQL{cfg: c, host: host, port: uint16(mapped.Int())}
}

// Credentials returns credentials for the container database using strategy.
func (p *PostgreSQL) Credentials(strategy database.Strategy) (*database.Credentials, error) {
	creds, err := database.NewCredentials(database.PostgreSQL, p.cfg.Database,
		database.WithHost(p.host),
		database.WithPort(p.port),
		database.WithUsername(p.cfg.Username),
		database.WithPassword(p.cfg.Password),
		database.WithStrategy(strategy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build PostgreSQL credentials: %w", err)
	}
	return creds, nil
}
