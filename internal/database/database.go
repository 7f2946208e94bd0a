// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordbay-events/sponsorreg/internal/config"
)

// NewPool creates and validates a pgxpool connection pool.
func NewPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}

// WakeProbe returns a probe that pings the pool with a short deadline,
// nudging a suspended serverless database back to life. Intended as the
// resilient executor's Wake hook.
func WakeProbe(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(probeCtx); err != nil {
			return fmt.Errorf("wake probe: %w", err)
		}
		return nil
	}
}
