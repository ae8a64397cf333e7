package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pool represents a named connection configuration.
type Pool struct {
	Config     *pgxpool.Config // Takes precedence over ConnString
	Name       string
	ConnString string // Used if Config is nil
	// MaxWait bounds how long Connect keeps retrying an unreachable server.
	// Zero means one minute.
	MaxWait time.Duration
}

var ErrNoConnString = errors.New("either Config or ConnString must be provided")

// Connect creates a connection pool and pings it, retrying with exponential
// backoff while the server is unreachable. Configuration errors are not
// retried.
func Connect(ctx context.Context, cfg Pool, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig := cfg.Config
	if poolConfig == nil {
		if cfg.ConnString == "" {
			return nil, ErrNoConnString
		}
		var err error
		poolConfig, err = pgxpool.ParseConfig(cfg.ConnString)
		if err != nil {
			return nil, fmt.Errorf("pgx: parse config: %w", err)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgx: creating pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	if cfg.MaxWait > 0 {
		b.MaxElapsedTime = cfg.MaxWait
	}

	ping := func() error {
		return pool.Ping(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("postgres not ready",
			zap.String("pool", cfg.Name),
			zap.Duration("retry_in", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx: ping connection: %w", err)
	}

	logger.Info("postgres connected", zap.String("pool", cfg.Name))
	return pool, nil
}
