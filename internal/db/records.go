package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/susu3304/tripledger/internal/ledger"
)

const recordColumns = "form, key, entity_code, report_date, data, net_cash::text, profit::text, status, version, submitted_by, submitted_at"

func scanRecord(row pgx.Row) (ledger.Record, error) {
	var r ledger.Record
	var data []byte
	var netCash, profit string
	err := row.Scan(&r.Form, &r.Key, &r.EntityCode, &r.Date, &data, &netCash, &profit,
		&r.Status, &r.Version, &r.SubmittedBy, &r.SubmittedAt)
	if err != nil {
		return ledger.Record{}, err
	}
	if err := decodeInto(&r, data, netCash, profit); err != nil {
		return ledger.Record{}, err
	}
	return r, nil
}

func (db *DB) ReadAll(ctx context.Context, form string) (map[string]ledger.Record, error) {
	rows, err := db.pool.Query(ctx,
		"SELECT "+recordColumns+" FROM records WHERE form = $1",
		form,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ledger.Record)
	for rows.Next() {
		r, err := scanRecord(rows)
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

// Get returns the record under key, or false when there is none.
func (db *DB) Get(ctx context.Context, form, key string) (ledger.Record, bool, error) {
	r, err := scanRecord(db.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM records WHERE form = $1 AND key = $2",
		form, key,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, err
	}
	return r, true, nil
}

// Upsert writes rec when the stored version equals expectedVersion. A single
// statement either inserts a missing row or bumps the version of a matching
// one, so concurrent writers to the same key cannot both succeed.
func (db *DB) Upsert(ctx context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error) {
	data, err := encodePayload(rec)
	if err != nil {
		return ledger.Record{}, err
	}

	var version int64
	if expectedVersion == 0 {
		err = db.pool.QueryRow(ctx, `
			INSERT INTO records (form, key, entity_code, report_date, data, net_cash, profit, status, version, submitted_by, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, 1, $9, $10)
			ON CONFLICT (form, key) DO NOTHING
			RETURNING version`,
			rec.Form, rec.Key, rec.EntityCode, rec.Date, data, rec.NetCash.String(), rec.Profit.String(),
			rec.Status, rec.SubmittedBy, rec.SubmittedAt,
		).Scan(&version)
	} else {
		err = db.pool.QueryRow(ctx, `
			UPDATE records SET entity_code = $3, report_date = $4, data = $5, net_cash = $6::numeric,
				profit = $7::numeric, status = $8, version = version + 1, submitted_by = $9, submitted_at = $10
			WHERE form = $1 AND key = $2 AND version = $11
			RETURNING version`,
			rec.Form, rec.Key, rec.EntityCode, rec.Date, data, rec.NetCash.String(), rec.Profit.String(),
			rec.Status, rec.SubmittedBy, rec.SubmittedAt, expectedVersion,
		).Scan(&version)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record{}, ledger.ErrVersionConflict
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to upsert record %s: %w", rec.Key, err)
	}

	rec.Version = version
	return rec, nil
}
