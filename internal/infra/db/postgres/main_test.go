//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"rust-vip-platform/internal/config"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("vip_test"),
		tcpostgres.WithUsername("vip"),
		tcpostgres.WithPassword("vip"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %v. Is Docker running?", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("could not get connection string: %v", err)
	}

	testPool, err = Connect(ctx, config.DatabaseConfig{URL: connStr, MaxConns: 5})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("unable to connect to test database: %v", err)
	}
	if err := Migrate(ctx, testPool); err != nil {
		_ = pgContainer.Terminate(ctx)
		log.Fatalf("could not apply migrations: %v", err)
	}

	exitCode := m.Run()

	testPool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("could not stop postgres container: %v", err)
	}
	os.Exit(exitCode)
}

func cleanup(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE users, subscriptions, system_logs, job_locks CASCADE`)
	if err != nil {
		t.Fatalf("Failed to clean up database: %v", err)
	}
}
