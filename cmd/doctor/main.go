// Command doctor checks that the infrastructure the marketplace services
// depend on is reachable. It reads the same environment as the services.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
)

type check struct {
	name string
	run  func(ctx context.Context) error
}

type result struct {
	name    string
	err     error
	elapsed time.Duration
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	pkgconfig.LoadDotEnv()

	var env pkgconfig.Env
	timeout := env.Duration("DOCTOR_TIMEOUT", 5*time.Second)
	if err := env.Err(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	checks := configuredChecks(&env)
	if len(checks) == 0 {
		logger.Error("Nothing to check: set MARKET_DB_URL, AUTH_DB_URL, USER_STATS_DB_URL, RABBITMQ_URL or REDIS_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	failed := 0
	for _, r := range runChecks(ctx, checks) {
		if r.err != nil {
			failed++
			logger.Error("Check failed", "check", r.name, "error", r.err, "elapsed", r.elapsed)
			continue
		}
		logger.Info("Check passed", "check", r.name, "elapsed", r.elapsed)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func configuredChecks(env *pkgconfig.Env) []check {
	var checks []check
	for _, key := range []string{"MARKET_DB_URL", "AUTH_DB_URL", "USER_STATS_DB_URL"} {
		if dsn := env.String(key, ""); dsn != "" {
			checks = append(checks, check{name: key, run: postgresCheck(dsn)})
		}
	}
	if url := env.String("RABBITMQ_URL", ""); url != "" {
		checks = append(checks, check{name: "RABBITMQ_URL", run: rabbitCheck(url)})
	}
	if addr := env.String("REDIS_URL", ""); addr != "" {
		checks = append(checks, check{name: "REDIS_URL", run: redisCheck(addr)})
	}
	return checks
}

// runChecks runs every check concurrently; results keep the order of checks.
func runChecks(ctx context.Context, checks []check) []result {
	results := make([]result, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.run(ctx)
			results[i] = result{name: c.name, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func postgresCheck(dsn string) func(context.Context) error {
	return func(ctx context.Context) error {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		var applied bool
		err = pool.QueryRow(ctx, `SELECT to_regclass('goose_db_version') IS NOT NULL`).Scan(&applied)
		if err != nil {
			return fmt.Errorf("inspect migrations: %w", err)
		}
		if !applied {
			return fmt.Errorf("no migrations applied")
		}
		return nil
	}
}

func rabbitCheck(url string) func(context.Context) error {
	return func(ctx context.Context) error {
		deadline, _ := ctx.Deadline()
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(time.Until(deadline))})
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		return conn.Close()
	}
}

func redisCheck(addr string) func(context.Context) error {
	return func(ctx context.Context) error {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		return rdb.Ping(ctx).Err()
	}
}
