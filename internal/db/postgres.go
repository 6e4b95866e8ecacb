package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/bookstore/internal/config"
)

const (
	pingAttempts  = 5
	pingBackoff   = 500 * time.Millisecond
	healthTimeout = 2 * time.Second
)

// Postgres owns the pool shared by the catalog, order and auth repositories.
type Postgres struct {
	Pool *pgxpool.Pool
}

// New opens the pool and waits for the server to answer, retrying the first ping with a doubling delay.
func New(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connstr: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := waitForServer(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")
	return &Postgres{Pool: pool}, nil
}

func waitForServer(ctx context.Context, pool *pgxpool.Pool) error {
	delay := pingBackoff
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Database not ready")
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping db: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("failed to ping db after %d attempts: %w", pingAttempts, err)
}

// Ping reports whether the database answers within a short timeout. It backs GET /health.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("Database connection closed")
	}
}
