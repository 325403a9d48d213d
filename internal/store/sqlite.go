package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database file and applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	if path == "" {
		path = "healthycity.db"
	}
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc/sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	d.SetMaxOpenConns(1)
	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	_, _ = d.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
	if _, err := d.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
		_ = d.Close()
		return nil, err
	}
	if err := applyMigrations(ctx, d); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return newEntityStore(&sqliteBackend{db: d}), nil
}

func (s *sqliteBackend) fetchAll(ctx context.Context, table string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE entity = ? ORDER BY rowid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteBackend) fetch(ctx context.Context, table, id string) (Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE entity = ? AND id = ?`, table, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord([]byte(data))
}

func (s *sqliteBackend) put(ctx context.Context, table string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records (entity, id, data) VALUES (?, ?, ?)
        ON CONFLICT (entity, id) DO UPDATE SET data = excluded.data`, table, rec["id"], string(data))
	return err
}

func (s *sqliteBackend) remove(ctx context.Context, table, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity = ? AND id = ?`, table, id)
	return err
}

func (s *sqliteBackend) truncate(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity = ?`, table)
	return err
}

func (s *sqliteBackend) close() error {
	return s.db.Close()
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.up\.sql$`)

// applyMigrations runs every embedded NNNN_name.up.sql not yet recorded in
// schema_migrations, in version order, each inside its own transaction.
func applyMigrations(ctx context.Context, d *sql.DB) error {
	if _, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`); err != nil {
		return err
	}
	applied := map[int]bool{}
	rows, err := d.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	files := map[int]string{}
	versions := []int{}
	for _, e := range entries {
		m := migFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(m[1], "%04d", &v); err != nil {
			continue
		}
		files[v] = "migrations/" + e.Name()
		versions = append(versions, v)
	}
	sort.Ints(versions)

	for _, v := range versions {
		if applied[v] {
			continue
		}
		text, err := migrationsFS.ReadFile(files[v])
		if err != nil {
			return err
		}
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(text)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %04d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, v); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
