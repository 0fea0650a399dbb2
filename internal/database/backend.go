package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"newsdigest/internal/store"
)

// Load reads every user record. Rows that do not decode are kept as raw
// records so that Save writes them back untouched.
func (d *Database) Load(ctx context.Context) (store.Table, error) {
	rows, err := d.db.QueryContext(ctx, "select user_id, record from user_records")
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "Load")
		}
	}()

	table := make(store.Table)
	for rows.Next() {
		var userID string
		var raw []byte
		if err = rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec, decodeErr := store.DecodeRecord(raw)
		if decodeErr != nil {
			d.log.WarnContext(ctx, "User record is corrupt",
				"error", decodeErr,
				"userID", userID)
		}

		table[userID] = rec
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return table, nil
}

// Save replaces the whole table in one transaction.
func (d *Database) Save(ctx context.Context, table store.Table) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, "delete from user_records"); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "insert into user_records (user_id, record) values (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			d.log.ErrorContext(ctx, "Failed to close statement",
				"error", closeErr,
				"operation", "Save")
		}
	}()

	for _, userID := range slices.Sorted(maps.Keys(table)) {
		rec := table[userID]
		if rec == nil {
			continue
		}

		raw := []byte(rec.Raw)
		if !rec.Invalid() {
			var marshalErr error
			if raw, marshalErr = json.Marshal(rec); marshalErr != nil {
				return fmt.Errorf("marshal record (userID = %s): %w", userID, marshalErr)
			}
		}

		if _, err = stmt.ExecContext(ctx, userID, raw); err != nil {
			return fmt.Errorf("insert record (userID = %s): %w", userID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
