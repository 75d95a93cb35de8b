// Package storage holds the two optional persistence adapters that
// supplement the core: a position-history log (Postgres via pgx) and
// recorded-clip storage (MinIO). Neither is part of the required
// pipeline — both are disabled by a zero-valued config section
// (config.DatabaseConfig.Enabled / config.MinIOConfig.Enabled).
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connectedhumber/arena-locator/internal/config"
)

// PositionStore appends one row per robot per publish tick to
// arena_positions, a supplemental history the core spec does not
// require but a fleet operator reviewing past runs would want.
type PositionStore struct {
	pool *pgxpool.Pool
}

func NewPositionStore(cfg config.DatabaseConfig) (*PositionStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PositionStore{pool: pool}
	if err := store.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PositionStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS arena_positions (
			id          BIGSERIAL PRIMARY KEY,
			robot_id    INT NOT NULL,
			x_mm        INT NOT NULL,
			y_mm        INT NOT NULL,
			heading_deg INT,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure arena_positions schema: %w", err)
	}
	return nil
}

// PositionRow is one robot's reading at a publish tick.
type PositionRow struct {
	RobotID int
	XMM     int
	YMM     int
	Heading *int // nil if heading() was none this frame
}

// InsertBatch writes one row per robot for this publish tick in a
// single round trip. Errors are the caller's to log-and-continue —
// losing a history row is not fatal to the locator's primary job.
func (s *PositionStore) InsertBatch(ctx context.Context, rows []PositionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO arena_positions (robot_id, x_mm, y_mm, heading_deg) VALUES ($1, $2, $3, $4)`,
			r.RobotID, r.XMM, r.YMM, r.Heading,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert position row: %w", err)
		}
	}
	return nil
}

func (s *PositionStore) Close() {
	s.pool.Close()
}

func (s *PositionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
