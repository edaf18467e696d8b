// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded by [LoadConfig]. Every key is read from the
// environment first; when CONFIG_FILE names a YAML file, keys missing from
// the environment are taken from it (written either as MEDIA_DIR or
// media_dir). Supported keys:
//
//   - MEDIA_DIR: Path to the music and video library (default: /media)
//   - DATABASE_DIR: Path to the database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - INDEX_INTERVAL: Full re-index interval (default: 30m)
//   - POLL_INTERVAL: Change detection interval (default: 30s)
//   - TRANSCODING_ENABLED: Allow ffmpeg transcoding (default: true)
//   - TRANSCODE_CACHE_ENTRIES: Transcode cache capacity (default: 4)
//   - DEFAULT_MAX_BITRATE: Bit rate cap in kbps for new players, 0 for none
//   - DEFAULT_FORMAT: Preferred format for new players
//   - RANDOM_BATCH_SIZE: Tracks fetched per random refill (default: 20)
//   - STREAM_WRITE_TIMEOUT: Single write timeout for streams (default: 30s)
//   - STREAM_IDLE_TIMEOUT: Idle timeout for streams (default: 2m)
//   - SCROBBLE_URL, SCROBBLE_TOKEN: Listen submission service
//   - LOG_LEVEL, LOG_FORMAT, LOG_STREAM_OPEN, LOG_HEALTH_CHECKS
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
