package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key does not exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// IndexRun describes the last completed indexing pass.
type IndexRun struct {
	Finished time.Time
	Duration time.Duration
}

const (
	lastIndexRunKey      = "last_index_run"
	lastIndexDurationKey = "last_index_duration"
)

// GetLastIndexRun returns the last completed index run.
// Returns a zero IndexRun if the library was never indexed.
func (d *Database) GetLastIndexRun(ctx context.Context) (IndexRun, error) {
	var run IndexRun

	value, err := d.GetMetadata(ctx, lastIndexRunKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return run, nil
	}
	if err != nil {
		return run, err
	}
	if run.Finished, err = time.Parse(time.RFC3339, value); err != nil {
		return run, err
	}

	value, err = d.GetMetadata(ctx, lastIndexDurationKey)
	if errors.Is(err, sql.ErrNoRows) {
		return run, nil
	}
	if err != nil {
		return run, err
	}
	if value != "" {
		if run.Duration, err = time.ParseDuration(value); err != nil {
			return run, err
		}
	}
	return run, nil
}

// SetLastIndexRun stores the finish time and duration of an index run.
func (d *Database) SetLastIndexRun(ctx context.Context, run IndexRun) error {
	if run.Finished.IsZero() {
		return d.SetMetadata(ctx, lastIndexRunKey, "")
	}
	if err := d.SetMetadata(ctx, lastIndexRunKey, run.Finished.Format(time.RFC3339)); err != nil {
		return err
	}
	return d.SetMetadata(ctx, lastIndexDurationKey, run.Duration.String())
}
