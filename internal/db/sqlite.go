package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/susu3304/tripledger/internal/ledger"
	_ "modernc.org/sqlite"
)

// SQLite is the single-file record store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One connection serialises writers and keeps ":memory:" a single database.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", path, err)
	}
	s := &SQLite{db: conn}
	if err := s.RunMigrations(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) RunMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS records (
			form TEXT NOT NULL,
			key TEXT NOT NULL,
			entity_code TEXT NOT NULL,
			report_date TEXT NOT NULL,
			data TEXT NOT NULL,
			net_cash TEXT NOT NULL,
			profit TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			submitted_by TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			PRIMARY KEY (form, key)
		);
		CREATE INDEX IF NOT EXISTS idx_records_entity ON records(form, entity_code);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return nil
}

const sqliteColumns = "form, key, entity_code, report_date, data, net_cash, profit, status, version, submitted_by, submitted_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (ledger.Record, error) {
	var r ledger.Record
	var data, netCash, profit, submittedAt string
	err := row.Scan(&r.Form, &r.Key, &r.EntityCode, &r.Date, &data, &netCash, &profit,
		&r.Status, &r.Version, &r.SubmittedBy, &submittedAt)
	if err != nil {
		return ledger.Record{}, err
	}
	if r.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return ledger.Record{}, fmt.Errorf("record %s: bad submitted_at %q: %w", r.Key, submittedAt, err)
	}
	if err := decodeInto(&r, []byte(data), netCash, profit); err != nil {
		return ledger.Record{}, err
	}
	return r, nil
}

func (s *SQLite) ReadAll(ctx context.Context, form string) (map[string]ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sqliteColumns+" FROM records WHERE form = ?", form)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ledger.Record)
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		out[r.Key] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, form, key string) (ledger.Record, bool, error) {
	r, err := scanSQLiteRecord(s.db.QueryRowContext(ctx,
		"SELECT "+sqliteColumns+" FROM records WHERE form = ? AND key = ?", form, key))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, err
	}
	return r, true, nil
}

// Upsert compares and writes inside one transaction.
func (s *SQLite) Upsert(ctx context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error) {
	data, err := encodePayload(rec)
	if err != nil {
		return ledger.Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to begin upsert of %s: %w", rec.Key, err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM records WHERE form = ? AND key = ?", rec.Form, rec.Key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return ledger.Record{}, fmt.Errorf("failed to read version of %s: %w", rec.Key, err)
	}
	if current != expectedVersion {
		return ledger.Record{}, ledger.ErrVersionConflict
	}

	rec.Version = current + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (form, key) DO UPDATE SET
			entity_code = excluded.entity_code,
			report_date = excluded.report_date,
			data = excluded.data,
			net_cash = excluded.net_cash,
			profit = excluded.profit,
			status = excluded.status,
			version = excluded.version,
			submitted_by = excluded.submitted_by,
			submitted_at = excluded.submitted_at`,
		rec.Form, rec.Key, rec.EntityCode, rec.Date, string(data), rec.NetCash.String(), rec.Profit.String(),
		rec.Status, rec.Version, rec.SubmittedBy, rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to write record %s: %w", rec.Key, err)
	}
	if err := tx.Commit(); err != nil {
		return ledger.Record{}, fmt.Errorf("failed to commit record %s: %w", rec.Key, err)
	}
	return rec, nil
}
