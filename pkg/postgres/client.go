package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a pgx connection pool.
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient parses dsn, applies options and verifies connectivity.
func NewClient(ctx context.Context, dsn string, opts ...Option) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}

	o := &Options{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = o.MaxConns
	poolCfg.MinConns = o.MinConns
	poolCfg.MaxConnLifetime = o.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = o.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Client{Pool: pool}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

func (c *Client) Close() {
	c.Pool.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := c.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema (statement %d): %w", i, err)
		}
	}
	return nil
}
