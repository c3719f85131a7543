package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
)

// NewPgxPool creates a new pgx pool with the given configuration. Connecting
// is retried with exponential backoff up to cfg.ConnectAttempts times.
func NewPgxPool(ctx context.Context, cfg config.Postgres, logger *slog.Logger) (*pgxpool.Pool, error) {
	pgConf, err := pgxpool.ParseConfig(ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	pgConf.ConnConfig.Tracer = newTracer()
	if cfg.ConnectTimeout > 0 {
		pgConf.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pgConf.MaxConns = cfg.MaxConns
	pgConf.MinConns = cfg.MinConns
	pgConf.MaxConnLifetime = cfg.MaxConnLifetime
	pgConf.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := connectWithRetry(ctx, pgConf, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := otelpgx.RecordStats(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("record database stats: %w", err)
	}

	return pool, nil
}

func connectWithRetry(ctx context.Context, pgConf *pgxpool.Config, cfg config.Postgres, logger *slog.Logger) (*pgxpool.Pool, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.ConnectBackoff > 0 {
		b.InitialInterval = cfg.ConnectBackoff
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	connect := func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgConf)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()

		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}

		return pool, nil
	}

	pool, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "database not reachable, retrying",
				slog.Any("error", err),
				slog.Duration("retry_in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return pool, nil
}

// ConnectionString builds the DSN, preferring the explicit URL when configured.
func ConnectionString(cfg config.Postgres) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.DB,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}

	return u.String()
}
