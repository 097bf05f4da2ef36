package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// PostgresDSN starts a shared Postgres container on first use and returns a
// connection string for it. Tests are skipped when no container runtime is
// available.
func PostgresDSN(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		postgresC, err := testcontainers.Run(
			ctx, "postgres:16",
			testcontainers.WithExposedPorts("5432/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForAll(
					// Container is listening
					wait.ForListeningPort("5432/tcp"),
					// Postgres reports readiness in logs
					wait.ForLog("ready to accept connections"),
					// Actively verify SQL connectivity using a DSN built from the mapped host:port
					wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
						return fmt.Sprintf("postgres://flowstate:flowstate@%s:%s/flowstate_test?sslmode=disable", host, port.Port())
					}).WithQuery("SELECT 1"),
				).WithDeadline(2*time.Minute),
			),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_USER":     "flowstate",
				"POSTGRES_PASSWORD": "flowstate",
				"POSTGRES_DB":       "flowstate_test",
			}),
		)
		if err != nil {
			pgErr = err
			return
		}

		t.Cleanup(func() {
			testcontainers.CleanupContainer(t, postgresC)
		})

		endpoint, err := postgresC.Endpoint(ctx, "")
		if err != nil {
			_ = postgresC.Terminate(context.Background()) // best-effort cleanup
			pgErr = err
			return
		}

		pgDSN = fmt.Sprintf("postgres://flowstate:flowstate@%s/flowstate_test?sslmode=disable", endpoint)
	})

	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return pgDSN
}
