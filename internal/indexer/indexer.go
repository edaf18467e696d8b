package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-streamer/internal/database"
	"media-streamer/internal/filesystem"
	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
)

const (
	// Number of tracks to process before committing a batch
	batchSize = 500

	// Minimum tracks to index before marking server as ready
	minTracksForReady = 100

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond

	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second

	probeTimeout = 30 * time.Second
)

// Prober reads stream properties from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.ProbeInfo, error)
}

// Indexer keeps the track library in sync with the media directory.
type Indexer struct {
	db                   *database.Database
	mediaDir             string
	prober               Prober
	indexInterval        time.Duration
	pollInterval         time.Duration
	ctx                  context.Context
	cancel               context.CancelFunc
	stopOnce             sync.Once
	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	// Progress tracking
	tracksIndexed  atomic.Int64
	foldersIndexed atomic.Int64
	indexProgress  atomic.Value

	parallelConfig ParallelWalkerConfig

	// Callback when indexing completes
	onIndexComplete func()

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	TracksIndexed  int64     `json:"tracksIndexed"`
	FoldersIndexed int64     `json:"foldersIndexed"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	TracksIndexed     int64          `json:"tracksIndexed"`
	FoldersIndexed    int64          `json:"foldersIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates a new Indexer instance.
func New(db *database.Database, mediaDir string, indexInterval time.Duration) *Indexer {
	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		db:                 db,
		mediaDir:           mediaDir,
		indexInterval:      indexInterval,
		pollInterval:       defaultPollInterval,
		ctx:                ctx,
		cancel:             cancel,
		startTime:          time.Now(),
		parallelConfig:     DefaultParallelWalkerConfig(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetProber enables probing of new or changed files for bit rate and
// duration. Without a prober tracks carry only path-derived metadata.
func (idx *Indexer) SetProber(p Prober) {
	idx.prober = p
}

// SetPollInterval sets the interval for polling-based change detection.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		idx.pollInterval = interval
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback to be invoked when indexing completes.
func (idx *Indexer) SetOnIndexComplete(callback func()) {
	idx.onIndexComplete = callback
}

// Start begins the indexing process.
func (idx *Indexer) Start() error {
	go func() {
		logging.Info("Starting initial index in background...")
		if err := idx.Index(); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	go idx.pollForChanges()

	if idx.indexInterval > 0 {
		go idx.periodicIndex()
	}

	return nil
}

// Stop stops the indexing process. A running index is abandoned without
// removing tracks it has not reached.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(idx.cancel)
}

// IsReady returns true if the server is ready to accept traffic.
func (idx *Indexer) IsReady() bool {
	if idx.tracksIndexed.Load() >= minTracksForReady {
		return true
	}

	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	progress := idx.getProgress()

	status := HealthStatus{
		Ready:          idx.initialIndexComplete || idx.tracksIndexed.Load() >= minTracksForReady,
		Indexing:       idx.isIndexing,
		StartTime:      idx.startTime,
		Uptime:         time.Since(idx.startTime).String(),
		LastIndexed:    idx.lastIndexTime,
		TracksIndexed:  idx.tracksIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
	}

	if idx.isIndexing {
		status.IndexProgress = &progress
	}

	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}

	return status
}

// pollForChanges periodically checks for file changes.
func (idx *Indexer) pollForChanges() {
	for !idx.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-idx.ctx.Done():
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Media changes detected, triggering re-index")
				if err := idx.Index(); err != nil {
					logging.Error("Re-index after change detection failed: %v", err)
				}
			}
		case <-idx.ctx.Done():
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges checks the root directory's modification time, the number
// of top-level entries and the modification times of top-level folders.
// It never walks the whole tree.
func (idx *Indexer) detectChanges() (bool, error) {
	rootInfo, err := filesystem.StatWithRetry(idx.mediaDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return false, fmt.Errorf("failed to stat media directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	lastSubdirModTimes := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		return true, nil
	}

	entries, err := os.ReadDir(idx.mediaDir)
	if err != nil {
		return false, fmt.Errorf("failed to read media directory: %w", err)
	}

	count, modTimes := topLevelState(idx.mediaDir, entries)
	if count != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, count)
		return true, nil
	}

	for name, mod := range modTimes {
		last, ok := lastSubdirModTimes[name]
		if !ok || mod.After(last) {
			logging.Debug("Subdirectory %s new or modified", name)
			return true, nil
		}
	}
	return false, nil
}

// topLevelState counts visible top-level entries and records the
// modification time of each top-level folder.
func topLevelState(mediaDir string, entries []fs.DirEntry) (int, map[string]time.Time) {
	count := 0
	modTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		count++
		if entry.IsDir() {
			if info, err := os.Stat(filepath.Join(mediaDir, entry.Name())); err == nil {
				modTimes[entry.Name()] = info.ModTime()
			}
		}
	}
	return count, modTimes
}

// updateLastKnownState updates the cached state after indexing.
func (idx *Indexer) updateLastKnownState() {
	rootInfo, err := filesystem.StatWithRetry(idx.mediaDir, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Failed to stat media directory for state update: %v", err)
		return
	}

	entries, err := os.ReadDir(idx.mediaDir)
	if err != nil {
		logging.Warn("Failed to read media directory for state update: %v", err)
		return
	}

	count, modTimes := topLevelState(idx.mediaDir, entries)

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = count
	idx.lastSubdirModTimes = modTimes
	idx.stateMu.Unlock()
}

// Index performs a full index of the media directory.
func (idx *Indexer) Index() error {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return nil
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting media indexing...")

	idx.resetCounters(startTime)

	walker := NewParallelWalker(idx.ctx, idx.mediaDir, idx.parallelConfig, idx.prepareTrack)
	tracks, err := walker.Walk()

	files, folders, _ := walker.Stats()
	idx.tracksIndexed.Store(files)
	idx.foldersIndexed.Store(folders)
	idx.updateProgress(startTime)

	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("walk media directory: %w", err)
	}

	if err := idx.processBatchedTracks(tracks, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	if err := idx.cleanupMissingTracks(startTime); err != nil {
		logging.Error("Error cleaning up missing tracks: %v", err)
		metrics.IndexerErrors.Inc()
	}

	idx.finalizeIndex(startTime, files, folders)
	idx.updateLastKnownState()

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(time.Since(startTime).Seconds())
	metrics.IndexerTracksProcessed.Add(float64(files))

	return nil
}

// prepareTrack derives a track from its path and, for new or changed
// files, probes it. Unchanged files keep the probed values already stored.
func (idx *Indexer) prepareTrack(ctx context.Context, job fileJob) (indexedTrack, bool) {
	it := indexedTrack{
		track:   media.TrackFromPath(job.relPath, job.info.Size()),
		modTime: job.info.ModTime(),
	}
	if idx.prober == nil {
		return it, true
	}

	known, ok, err := idx.db.TrackModTime(ctx, job.relPath)
	if err == nil && ok && known.Unix() == it.modTime.Unix() {
		return it, true
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := idx.prober.Probe(pctx, job.path)
	if err != nil {
		logging.Debug("Probe failed for %s: %v", job.relPath, err)
		return it, true
	}
	it.track.BitRate = info.BitRate
	it.track.DurationSeconds = int(info.Duration.Seconds())
	return it, true
}

// processBatchedTracks inserts tracks into the database in batches.
func (idx *Indexer) processBatchedTracks(tracks []indexedTrack, startTime time.Time) error {
	total := len(tracks)
	size := idx.parallelConfig.BatchSize
	if size < 1 {
		size = batchSize
	}
	logging.Info("Processing %d tracks in batches of %d", total, size)

	for i := 0; i < total; i += size {
		if err := idx.ctx.Err(); err != nil {
			return err
		}

		end := min(i+size, total)
		if err := idx.processBatch(tracks[i:end]); err != nil {
			logging.Error("Error processing batch: %v", err)
		}

		idx.updateProgress(startTime)

		if end < total {
			time.Sleep(batchDelay)
		}
		if end%5000 == 0 || end == total {
			logging.Info("Database insert progress: %d/%d tracks", end, total)
		}
	}

	return nil
}

// processBatch writes a batch of tracks in a single transaction.
func (idx *Indexer) processBatch(tracks []indexedTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := idx.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for _, t := range tracks {
		if err := idx.db.UpsertTrack(tx, t.track, t.modTime); err != nil {
			logging.Warn("Error upserting track %s: %v", t.track.Path, err)
		}
	}

	if err := idx.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// cleanupMissingTracks removes tracks that were not seen by this run.
func (idx *Indexer) cleanupMissingTracks(indexTime time.Time) error {
	tx, err := idx.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}

	deleted, err := idx.db.DeleteMissingTracks(tx, indexTime)
	if err != nil {
		if endErr := idx.db.EndBatch(tx, err); endErr != nil {
			logging.Error("failed to end batch after cleanup error: %v", endErr)
		}
		return err
	}

	if err := idx.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if deleted > 0 {
		logging.Info("Removed %d missing tracks from the library", deleted)
	}

	return nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

func (idx *Indexer) resetCounters(startTime time.Time) {
	idx.tracksIndexed.Store(0)
	idx.foldersIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

func (idx *Indexer) updateProgress(startTime time.Time) {
	idx.indexProgress.Store(IndexProgress{
		TracksIndexed:  idx.tracksIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
		IsIndexing:     true,
		StartedAt:      startTime,
	})
}

// finalizeIndex records the completed run.
func (idx *Indexer) finalizeIndex(startTime time.Time, tracks, folders int64) {
	duration := time.Since(startTime)
	finished := time.Now()

	idx.indexMu.Lock()
	idx.lastIndexTime = finished
	idx.indexMu.Unlock()

	idx.indexProgress.Store(IndexProgress{
		TracksIndexed:  tracks,
		FoldersIndexed: folders,
		IsIndexing:     false,
	})

	run := database.IndexRun{Finished: finished, Duration: duration}
	if err := idx.db.SetLastIndexRun(idx.ctx, run); err != nil {
		logging.Warn("Failed to record index run: %v", err)
	}

	logging.Info("Index complete: %d tracks, %d folders in %v", tracks, folders, duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete()
	}
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if err := idx.Index(); err != nil {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// TriggerIndex manually triggers a re-index.
func (idx *Indexer) TriggerIndex() {
	go func() {
		if err := idx.Index(); err != nil {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	return idx.getProgress()
}
