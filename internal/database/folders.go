package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// IncrementPlayCount records a play of a track in folder.
func (d *Database) IncrementPlayCount(ctx context.Context, folder string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("increment_play_count", start, err) }()

	folder = strings.Trim(folder, "/")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO folders (path, play_count, last_played) VALUES (?, 1, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			play_count = folders.play_count + 1,
			last_played = excluded.last_played
	`, folder)
	return err
}

// GetPlayCount returns how many tracks were played from folder and when
// the last one started. A folder that was never played has count 0.
func (d *Database) GetPlayCount(ctx context.Context, folder string) (count int, lastPlayed time.Time, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var last sql.NullInt64
	err = d.db.QueryRowContext(ctx,
		"SELECT play_count, last_played FROM folders WHERE path = ?",
		strings.Trim(folder, "/"),
	).Scan(&count, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	if last.Valid {
		lastPlayed = time.Unix(last.Int64, 0)
	}
	return count, lastPlayed, nil
}
