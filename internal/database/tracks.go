package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
)

// ErrFolderNotFound is returned by ListFolder for a folder with no tracks
// below it.
var ErrFolderNotFound = errors.New("folder not found")

const trackColumns = `id, path, folder, title, artist, album, track_number, format, media_type, size, bit_rate, duration`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (media.Track, error) {
	var t media.Track
	var mediaType string
	err := row.Scan(
		&t.ID, &t.Path, &t.Folder, &t.Title, &t.Artist, &t.Album,
		&t.TrackNumber, &t.Format, &mediaType, &t.Size, &t.BitRate, &t.DurationSeconds,
	)
	t.MediaType = media.MediaType(mediaType)
	return t, err
}

func scanTracks(rows *sql.Rows) ([]media.Track, error) {
	defer rows.Close()

	tracks := []media.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpsertTrack inserts or updates a track within a transaction and marks it
// as seen by the current index run.
func (d *Database) UpsertTrack(tx *sql.Tx, t media.Track, modTime time.Time) error {
	query := `
	INSERT INTO tracks (path, folder, title, artist, album, track_number, format, media_type, size, bit_rate, duration, mod_time, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		folder = excluded.folder,
		title = excluded.title,
		artist = excluded.artist,
		album = excluded.album,
		track_number = excluded.track_number,
		format = excluded.format,
		media_type = excluded.media_type,
		size = excluded.size,
		bit_rate = CASE WHEN excluded.bit_rate > 0 THEN excluded.bit_rate ELSE tracks.bit_rate END,
		duration = CASE WHEN excluded.duration > 0 THEN excluded.duration ELSE tracks.duration END,
		mod_time = excluded.mod_time,
		updated_at = strftime('%s', 'now')
	`

	// The transaction controls the operation's lifecycle.
	_, err := tx.ExecContext(context.Background(), query,
		t.Path, t.Folder, t.Title, t.Artist, t.Album, t.TrackNumber,
		t.Format, string(t.MediaType), t.Size, t.BitRate, t.DurationSeconds,
		modTime.Unix(),
	)
	return err
}

// DeleteMissingTracks removes tracks that were not seen since cutoff.
// Must be called within a transaction.
func (d *Database) DeleteMissingTracks(tx *sql.Tx, cutoff time.Time) (int64, error) {
	result, err := tx.ExecContext(context.Background(),
		"DELETE FROM tracks WHERE updated_at < ?",
		cutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TrackModTime returns the stored modification time of the track at path.
// ok is false when the track is not in the library.
func (d *Database) TrackModTime(ctx context.Context, relPath string) (modTime time.Time, ok bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var unix int64
	err = d.db.QueryRowContext(ctx, "SELECT mod_time FROM tracks WHERE path = ?", relPath).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0), true, nil
}

// GetTrack returns the track with the given ID.
func (d *Database) GetTrack(ctx context.Context, id media.TrackID) (media.Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_track", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var t media.Track
	t, err = scanTrack(d.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return media.Track{}, fmt.Errorf("id %d: %w", id, ErrTrackNotFound)
	}
	return t, err
}

// GetTrackByPath returns the track at a media-relative path.
func (d *Database) GetTrackByPath(ctx context.Context, relPath string) (media.Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_track_by_path", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var t media.Track
	t, err = scanTrack(d.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE path = ?", relPath))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return media.Track{}, fmt.Errorf("%s: %w", relPath, ErrTrackNotFound)
	}
	return t, err
}

// ListFolder returns the tracks directly inside folder and the names of
// its immediate subfolders. The empty string is the library root.
func (d *Database) ListFolder(ctx context.Context, folder string) (*FolderListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_folder", start, err) }()

	folder = strings.Trim(folder, "/")
	if folder == "." {
		folder = ""
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT `+trackColumns+` FROM tracks
		WHERE folder = ?
		ORDER BY track_number, title COLLATE NOCASE, path
	`, folder)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	var tracks []media.Track
	if tracks, err = scanTracks(rows); err != nil {
		return nil, fmt.Errorf("scan tracks: %w", err)
	}

	prefix := ""
	if folder != "" {
		prefix = folder + "/"
	}
	rows, err = d.db.QueryContext(ctx,
		`SELECT DISTINCT folder FROM tracks WHERE folder LIKE ? ESCAPE '\' AND folder != ''`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list subfolders: %w", err)
	}
	var below []string
	below, err = scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan subfolders: %w", err)
	}

	subfolders := lo.Uniq(lo.Map(below, func(f string, _ int) string {
		child, _, _ := strings.Cut(strings.TrimPrefix(f, prefix), "/")
		return child
	}))
	slices.SortFunc(subfolders, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})

	if folder != "" && len(tracks) == 0 && len(subfolders) == 0 {
		err = nil
		return nil, fmt.Errorf("%s: %w", folder, ErrFolderNotFound)
	}

	listing := &FolderListing{
		Path:    folder,
		Folders: subfolders,
		Tracks:  tracks,
	}
	if folder != "" {
		if parent := path.Dir(folder); parent != "." {
			listing.Parent = parent
		}
	}

	err = d.db.QueryRowContext(ctx, "SELECT play_count FROM folders WHERE path = ?", folder).Scan(&listing.PlayCount)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return listing, err
}

// RandomTracks picks up to criteria.Count random tracks matching the
// criteria. Folder matches the folder and everything below it.
func (d *Database) RandomTracks(ctx context.Context, criteria media.RandomSearchCriteria) ([]media.Track, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("random_tracks", start, err) }()

	count := criteria.Count
	if count <= 0 {
		count = DefaultRandomCount
	}

	var where []string
	var args []any
	if f := strings.Trim(criteria.Folder, "/"); f != "" {
		where = append(where, `(folder = ? OR folder LIKE ? ESCAPE '\')`)
		args = append(args, f, escapeLike(f+"/")+"%")
	}
	if criteria.Artist != "" {
		where = append(where, "artist = ? COLLATE NOCASE")
		args = append(args, criteria.Artist)
	}
	if criteria.Format != "" {
		where = append(where, "format = ?")
		args = append(args, strings.ToLower(criteria.Format))
	}
	if criteria.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, string(criteria.MediaType))
	}

	query := "SELECT " + trackColumns + " FROM tracks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY RANDOM() LIMIT ?"
	args = append(args, count)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("random tracks: %w", err)
	}
	var tracks []media.Track
	tracks, err = scanTracks(rows)
	if err != nil {
		return nil, err
	}

	logging.Debug("RandomTracks(%+v) returned %d tracks", criteria, len(tracks))
	return tracks, nil
}

// GetStats computes library totals and adds the last index run recorded
// in the metadata table.
func (d *Database) GetStats(ctx context.Context) (media.LibraryStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	var stats media.LibraryStats

	d.mu.RLock()
	qctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	err = d.db.QueryRowContext(qctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN media_type = 'music' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN media_type = 'video' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT folder),
			COALESCE(SUM(size), 0)
		FROM tracks
	`).Scan(&stats.TotalTracks, &stats.TotalMusic, &stats.TotalVideos, &stats.TotalFolders, &stats.TotalBytes)
	cancel()
	d.mu.RUnlock()
	if err != nil {
		return stats, fmt.Errorf("library totals: %w", err)
	}

	var run IndexRun
	run, err = d.GetLastIndexRun(ctx)
	if err != nil {
		return stats, err
	}
	stats.LastIndexed = run.Finished
	if run.Duration > 0 {
		stats.IndexDuration = run.Duration.Round(time.Millisecond).String()
	}

	metrics.LibraryTracksTotal.WithLabelValues(string(media.MediaTypeMusic)).Set(float64(stats.TotalMusic))
	metrics.LibraryTracksTotal.WithLabelValues(string(media.MediaTypeVideo)).Set(float64(stats.TotalVideos))
	metrics.LibraryFoldersTotal.Set(float64(stats.TotalFolders))
	return stats, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so s matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
