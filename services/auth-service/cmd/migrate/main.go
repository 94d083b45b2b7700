package main

import (
	"context"
	"log/slog"
	"os"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	pkgdb "github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/services/auth-service/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	pkgconfig.LoadDotEnv()

	var env pkgconfig.Env
	dsn := env.Required("AUTH_DB_URL")
	if err := env.Err(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	command, args := "up", []string(nil)
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	if err := pkgdb.RunMigrations(context.Background(), dsn, migrations.FS, command, args...); err != nil {
		logger.Error("Migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied", "command", command)
}
