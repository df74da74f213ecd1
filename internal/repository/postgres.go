package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Connect opens a pool and retries the first ping until the database
// answers or maxElapsed runs out. A malformed URL fails immediately.
func Connect(ctx context.Context, databaseURL string, maxElapsed time.Duration, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready", zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(maxElapsed)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("connected to database", zap.Int("attempts", attempt))
	return pool, nil
}
