package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers preparing tracks
	NumWorkers int
	// BatchSize is the number of tracks committed per transaction
	BatchSize int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// maxIndexWorkers caps the probe pool; ffprobe over NFS gets slower, not
// faster, past this.
const maxIndexWorkers = 8

// DefaultParallelWalkerConfig returns defaults, honoring INDEX_WORKERS.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForMixed("INDEX_WORKERS", maxIndexWorkers),
		BatchSize:     batchSize,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// fileJob is a media file waiting to be turned into a track
type fileJob struct {
	path    string
	info    os.FileInfo
	relPath string
}

// indexedTrack is a prepared track and the file's modification time
type indexedTrack struct {
	track   media.Track
	modTime time.Time
}

// prepareFunc turns a file into a track. ok is false for files that are
// not part of the library.
type prepareFunc func(ctx context.Context, job fileJob) (t indexedTrack, ok bool)

// ParallelWalker walks the media directory and prepares tracks on a pool
// of workers.
type ParallelWalker struct {
	config   ParallelWalkerConfig
	mediaDir string
	prepare  prepareFunc

	jobs    chan fileJob
	results chan indexedTrack

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	skipped          atomic.Int64
}

// NewParallelWalker creates a walker. The walk stops when ctx is done or
// Stop is called.
func NewParallelWalker(ctx context.Context, mediaDir string, config ParallelWalkerConfig, prepare prepareFunc) *ParallelWalker {
	ctx, cancel := context.WithCancel(ctx)
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}

	return &ParallelWalker{
		config:   config,
		mediaDir: mediaDir,
		prepare:  prepare,
		jobs:     make(chan fileJob, config.ChannelBuffer),
		results:  make(chan indexedTrack, config.ChannelBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Walk walks the tree and returns every prepared track. A canceled walk
// returns the context's error with whatever was prepared so far.
func (pw *ParallelWalker) Walk() ([]indexedTrack, error) {
	logging.Info("Starting parallel directory walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()
	defer pw.cancel()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var tracks []indexedTrack
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for t := range pw.results {
			tracks = append(tracks, t)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d tracks, %d folders in %v (skipped: %d)",
		pw.filesProcessed.Load(),
		pw.foldersProcessed.Load(),
		time.Since(startTime),
		pw.skipped.Load())

	if err == nil {
		err = pw.ctx.Err()
	}
	return tracks, err
}

// walkAndEnqueue walks the directory tree and sends media files to workers
func (pw *ParallelWalker) walkAndEnqueue() error {
	return filepath.WalkDir(pw.mediaDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != pw.mediaDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(pw.mediaDir, path)
		if err != nil || relPath == "." {
			//nolint:nilerr // skip this entry but keep walking
			return nil
		}

		if d.IsDir() {
			pw.foldersProcessed.Add(1)
			return nil
		}
		if !media.IsStreamable(filepath.Ext(d.Name())) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info, relPath: filepath.ToSlash(relPath)}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		if pw.ctx.Err() != nil {
			// Drain so the walker never blocks on a full channel.
			continue
		}

		t, ok := pw.prepare(pw.ctx, job)
		if !ok {
			pw.skipped.Add(1)
			continue
		}
		pw.filesProcessed.Add(1)

		select {
		case pw.results <- t:
		case <-pw.ctx.Done():
		}
	}

	logging.Debug("Worker %d finished", id)
}

// Stop cancels the walk
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, folders, skipped int64) {
	return pw.filesProcessed.Load(), pw.foldersProcessed.Load(), pw.skipped.Load()
}
