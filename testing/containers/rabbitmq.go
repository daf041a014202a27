//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig holds configuration for the RabbitMQ test container.
type RabbitMQConfig struct {
	// ImageTag specifies the RabbitMQ version (default: "3.13-management-alpine")
	ImageTag       string
	Username       string
	Password       string
	StartupTimeout time.Duration
}

// DefaultRabbitMQConfig returns the configuration used when none is given.
func DefaultRabbitMQConfig() RabbitMQConfig {
	return RabbitMQConfig{
		ImageTag:       "3.13-management-alpine",
		Username:       "guest",
		Password:       "guest",
		StartupTimeout: 60 * time.Second,
	}
}

// StartRabbitMQ starts a RabbitMQ container that is terminated when the test ends
// and returns its AMQP URL.
func StartRabbitMQ(ctx context.Context, t *testing.T, cfg *RabbitMQConfig) string {
	t.Helper()
	skipWithoutDocker(ctx, t)

	c := DefaultRabbitMQConfig()
	if cfg != nil {
		c = *cfg
	}

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:"+c.ImageTag,
		rabbitmq.WithAdminUsername(c.Username),
		rabbitmq.WithAdminPassword(c.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").WithStartupTimeout(c.StartupTimeout),
		),
	)
	if container != nil {
		terminateOnCleanup(t, "RabbitMQ", container)
	}
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get RabbitMQ AMQP URL: %v", err)
	}
	return amqpURL
}
