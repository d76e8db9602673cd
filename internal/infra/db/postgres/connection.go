package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// NewPgxPool opens a connection pool and verifies it with a ping.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(cctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the orders table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS orders (
  order_id           TEXT PRIMARY KEY,
  user_id            TEXT NOT NULL DEFAULT '',
  plan_id            TEXT NOT NULL DEFAULT '',
  plan_name          TEXT NOT NULL DEFAULT '',
  amount             BIGINT NOT NULL DEFAULT 0,
  plan_duration_days INT NOT NULL DEFAULT 0,
  status             TEXT NOT NULL,
  activated          BOOLEAN NOT NULL DEFAULT FALSE,
  synthesized        BOOLEAN NOT NULL DEFAULT FALSE,
  created_at         TIMESTAMPTZ NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at);`
	_, err := pool.Exec(ctx, ddl)
	return err
}
