package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_streamer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_streamer_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_streamer_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_indexer_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed index run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_indexer_last_run_duration_seconds",
			Help: "Duration of the last index run in seconds",
		},
	)

	IndexerTracksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_indexer_tracks_processed_total",
			Help: "Total number of tracks processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_indexer_running",
			Help: "Whether the indexer is currently running (1) or not (0)",
		},
	)
)

// Library metrics
var (
	LibraryTracksTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_streamer_library_tracks_total",
			Help: "Number of indexed tracks by media type",
		},
		[]string{"type"},
	)

	LibraryFoldersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_library_folders_total",
			Help: "Number of folders containing indexed tracks",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_transcoder_jobs_total",
			Help: "Total number of transcoder invocations",
		},
		[]string{"kind", "status"}, // kind: transcode, downsample, passthrough
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_streamer_transcoder_job_duration_seconds",
			Help:    "Wall time of completed ffmpeg processes",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_transcoder_jobs_in_progress",
			Help: "Number of ffmpeg processes currently running",
		},
	)
)

// Transcode cache metrics
var (
	TranscodeCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_transcode_cache_requests_total",
			Help: "Transcode cache lookups by result",
		},
		[]string{"result"}, // hit, miss, passthrough
	)

	TranscodeCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_transcode_cache_evictions_total",
			Help: "Entries evicted from the recent transcode cache",
		},
	)

	TranscodeCacheMaterializedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_transcode_cache_materialized_bytes_total",
			Help: "Bytes of transcoded output buffered by the cache",
		},
	)

	TranscodeCacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_transcode_cache_errors_total",
			Help: "Transcoded streams that failed while being buffered",
		},
	)
)

// Streaming metrics
var (
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_streams_active",
			Help: "Number of player streams currently being served",
		},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_stream_bytes_total",
			Help: "Bytes delivered to players",
		},
	)

	StreamTrackChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_stream_track_changes_total",
			Help: "Number of tracks opened by stream adapters",
		},
	)

	StreamRandomRefills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_stream_random_refills_total",
			Help: "Auto-random queue refills by result",
		},
		[]string{"result"}, // filled, empty, error
	)

	StreamEndings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_stream_endings_total",
			Help: "Player streams ended by reason",
		},
		[]string{"reason"}, // complete, client_gone, timeout, error
	)

	AccountingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_accounting_failures_total",
			Help: "Play-count and scrobble hooks that failed",
		},
		[]string{"hook"},
	)
)

// Player metrics
var (
	PlayersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_players_total",
			Help: "Number of registered players",
		},
	)

	QueueOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_queue_operations_total",
			Help: "Queue control operations by action and status",
		},
		[]string{"action", "status"},
	)
)

// Scrobble metrics
var (
	ScrobbleSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_scrobble_submissions_total",
			Help: "Scrobble submissions by type and status",
		},
		[]string{"type", "status"}, // type: playing_now, single
	)

	ScrobbleQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_scrobble_dropped_total",
			Help: "Scrobble events dropped because the submit queue was full",
		},
	)
)

// Filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors by operation",
		},
		[]string{"operation"}, // stat, open
	)

	FilesystemRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_filesystem_retries_total",
			Help: "Filesystem retries by operation and final result",
		},
		[]string{"operation", "result"}, // result: success, failure
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_memory_pressure",
			Help: "1 while heap usage is above the high water mark",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_memory_pressure_events_total",
			Help: "Times heap usage crossed the high water mark",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_streamer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
