package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	// 1: library and play statistics
	`
	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		folder TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		track_number INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL,
		media_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		bit_rate INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_folder ON tracks(folder);
	CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_tracks_media_type ON tracks(media_type);
	CREATE INDEX IF NOT EXISTS idx_tracks_updated_at ON tracks(updated_at);

	CREATE TABLE IF NOT EXISTS folders (
		path TEXT PRIMARY KEY,
		play_count INTEGER NOT NULL DEFAULT 0,
		last_played INTEGER
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`,
	// 2: random search filters by format
	`CREATE INDEX IF NOT EXISTS idx_tracks_format ON tracks(format);`,
}

// Database stores the track library and folder play counts.
type Database struct {
	db     *sql.DB
	dbPath string

	// mu serializes play-count and metadata writes against readers; the
	// indexer's batches rely on SQLite's own locking.
	mu sync.RWMutex

	batchMu     sync.Mutex
	batchStarts map[*sql.Tx]time.Time
}

// New opens (creating if needed) the library database at dbPath and brings
// its schema up to date. The parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL lets streams read the library while the indexer holds a write
	// transaction; busy_timeout covers the remaining lock contention.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to connect to database: %w", err), db.Close())
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:          db,
		dbPath:      dbPath,
		batchStarts: make(map[*sql.Tx]time.Time),
	}

	version, err := d.migrate(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to migrate database schema: %w", err), db.Close())
	}

	logging.Info("Database ready at %s (schema version %d)", dbPath, version)
	return d, nil
}

// migrate applies pending migrations and returns the resulting version.
func (d *Database) migrate(ctx context.Context) (int, error) {
	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	for version < len(migrations) {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return version, err
		}
		if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
			return version, errors.Join(fmt.Errorf("migration %d: %w", version+1, err), tx.Rollback())
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return version, errors.Join(err, tx.Rollback())
		}
		if err := tx.Commit(); err != nil {
			return version, err
		}
		version++
		logging.Debug("Applied database migration %d", version)
	}
	return version, nil
}

// SchemaVersion returns the number of migrations applied to the database.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a transaction for a run of indexer writes. Every
// successful call must be paired with EndBatch.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	start := time.Now()
	// Lifetime is bounded by EndBatch, not a context deadline.
	tx, err := d.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}

	d.batchMu.Lock()
	d.batchStarts[tx] = start
	d.batchMu.Unlock()
	return tx, nil
}

// EndBatch commits tx, or rolls it back when err is non-nil and returns err.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	d.batchMu.Lock()
	start, ok := d.batchStarts[tx]
	delete(d.batchStarts, tx)
	d.batchMu.Unlock()
	if !ok {
		start = time.Now()
	}
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateDBMetrics refreshes the connection pool gauge.
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}
