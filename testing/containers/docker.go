//go:build integration

// Package containers starts throwaway PostgreSQL and RabbitMQ instances for
// integration-tagged tests. Tests are skipped when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// isDockerAvailable reports whether the testcontainers Docker provider can reach a daemon.
func isDockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()
	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test")
	}
}

// terminateOnCleanup stops c when the test finishes.
func terminateOnCleanup(t *testing.T, name string, c testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", name, err)
		}
	})
}
