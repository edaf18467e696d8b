// Package main provides the entry point for the media streamer.
//
// The media streamer indexes a music and video library and serves each
// registered player's playback queue as one continuous HTTP stream,
// transcoding tracks with FFmpeg when a player asks for a different
// format or a lower bit rate.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT
//  2. Configuration Loading: environment variables, then the optional
//     YAML file named by CONFIG_FILE
//  3. Database Initialization: SQLite library index
//  4. Component Initialization:
//     - Transcoder and transcode cache
//     - Memory monitor, which purges the transcode cache under pressure
//     - Indexer with change polling and FFmpeg probing
//     - Scrobble submitter
//     - Player registry
//     - Metrics collector
//  5. HTTP Server Setup: routes, logging and metrics middleware
//  6. Graceful Shutdown on SIGINT/SIGTERM
//
// # HTTP Server
//
// The main server (default port 8080) exposes the control API under
// /api and player streams under /rest/stream/{player}. A second server
// (default port 9090) serves /metrics when METRICS_ENABLED is true.
//
// # Graceful Shutdown
//
//  1. Stop the metrics collector and memory monitor
//  2. Stop the indexer
//  3. Stop every player queue so attached streams end
//  4. Kill remaining FFmpeg processes
//  5. Shut down the metrics and main HTTP servers (30s timeout)
//  6. Flush queued scrobbles
//
// Build:
//
//	go build -o media-streamer ./cmd/media-streamer
package main
