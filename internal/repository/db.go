package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the Postgres pool and waits for it to answer, backing off
// exponentially for up to maxWait.
func Connect(ctx context.Context, logger *zap.Logger, databaseURL string, maxWait time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	ping := func() error {
		return db.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("retry_in", next))
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
