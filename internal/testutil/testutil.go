// Package testutil connects integration tests to the services described by config.LoadTestConfig.
package testutil

import (
	"context"
	"fmt"
	"time"

	"campus-ticketing/config"
	"campus-ticketing/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SetupDatabase connects to the test Postgres and applies the schema.
func SetupDatabase() (*pgxpool.Pool, func(), error) {
	cfg := config.LoadTestConfig()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize test database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return pool, pool.Close, nil
}

// SetupRedisOnly is for tests that depend on Redis alone, such as the stream queue.
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	cleanup := func() { _ = rdb.Close() }
	return rdb, cleanup, nil
}

// TruncateAll empties the ledger tables between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE tickets, payments, registrations, events CASCADE")
	return err
}
