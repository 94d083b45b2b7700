package main

import (
	"context"
	"log/slog"
	"os"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	pkgdb "github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/services/market-service/migrations"
)

// Usage: migrate [up|down|status|redo|version] [args...]; defaults to up.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	pkgconfig.LoadDotEnv()

	var env pkgconfig.Env
	dsn := env.Required("MARKET_DB_URL")
	if err := env.Err(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	logger.Info("Running migrations", "command", command)
	if err := pkgdb.RunMigrations(context.Background(), dsn, migrations.FS, command, args...); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations complete")
}
