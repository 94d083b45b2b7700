package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/campusbay/marketplace/pkg/database"
)

type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts a throwaway Postgres, applies the goose migrations
// found at migrationsPath and registers cleanup on t.
func NewTestDatabase(t *testing.T, migrationsPath string) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("market_test"),
		postgres.WithUsername("market"),
		postgres.WithPassword("market"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(tclog.TestLogger(t)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}

	td := &TestDatabase{Container: pgContainer}
	t.Cleanup(td.Close)

	td.ConnStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	td.Pool, err = pgxpool.New(ctx, td.ConnStr)
	if err != nil {
		t.Fatalf("failed to connect to database: %s", err)
	}
	if pingErr := td.Pool.Ping(ctx); pingErr != nil {
		t.Fatalf("failed to ping database: %s", pingErr)
	}

	if err := Migrate(td.ConnStr, migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %s", err)
	}

	return td
}

// Migrate applies every goose migration in dir to the database at connStr.
func Migrate(connStr, dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return database.RunMigrations(context.Background(), connStr, os.DirFS(absPath), "up")
}

// Truncate empties the given tables between subtests.
func (td *TestDatabase) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := td.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %s", table, err)
		}
	}
}

func (td *TestDatabase) Close() {
	if td.Pool != nil {
		td.Pool.Close()
		td.Pool = nil
	}
	if td.Container != nil {
		_ = td.Container.Terminate(context.Background())
		td.Container = nil
	}
}
