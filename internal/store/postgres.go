package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the relational backend.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

type postgresBackend struct {
	pool *pgxpool.Pool
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS records (
    entity text NOT NULL,
    id text NOT NULL,
    seq bigserial,
    data jsonb NOT NULL,
    PRIMARY KEY (entity, id)
);
CREATE INDEX IF NOT EXISTS idx_records_entity_seq ON records (entity, seq);`

// OpenPostgres connects a pgx pool and ensures the records table exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 1
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return newEntityStore(&postgresBackend{pool: pool}), nil
}

func (p *postgresBackend) fetchAll(ctx context.Context, table string) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM records WHERE entity = $1 ORDER BY seq`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *postgresBackend) fetch(ctx context.Context, table, id string) (Record, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM records WHERE entity = $1 AND id = $2`, table, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func (p *postgresBackend) put(ctx context.Context, table string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO records (entity, id, data) VALUES ($1, $2, $3::jsonb)
        ON CONFLICT (entity, id) DO UPDATE SET data = EXCLUDED.data`, table, rec["id"], string(data))
	return err
}

func (p *postgresBackend) remove(ctx context.Context, table, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM records WHERE entity = $1 AND id = $2`, table, id)
	return err
}

func (p *postgresBackend) truncate(ctx context.Context, table string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM records WHERE entity = $1`, table)
	return err
}

func (p *postgresBackend) close() error {
	p.pool.Close()
	return nil
}
