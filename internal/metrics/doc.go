// Package metrics provides Prometheus instrumentation for the media streamer.
//
// All metrics are prefixed with "media_streamer_" and registered with the
// default registry at package initialization, so importing the package is
// enough to expose them on /metrics.
//
// # Metric Categories
//
// ## HTTP and Database
//
// Request counts, latencies and in-flight requests, plus per-operation
// database query counts and durations.
//
// ## Indexer and Library
//
// Index run counts and durations, tracks processed, and the size of the
// indexed library by media type.
//
// ## Transcoding
//
//   - TranscoderJobsTotal: ffmpeg invocations by kind and status
//   - TranscodeCacheRequests: cache lookups (hit, miss, passthrough)
//   - TranscodeCacheEvictions: entries dropped from the recent-entry cache
//   - TranscodeCacheMaterializedBytes: transcoded bytes buffered for replay
//
// ## Streaming
//
//   - StreamsActive: player streams being served
//   - StreamBytesTotal: bytes delivered to players
//   - StreamRandomRefills: auto-random queue refills by result
//   - AccountingFailures: play-count and scrobble hooks that failed
//
// InitializeMetrics pre-creates label combinations so dashboards see zero
// values from the first scrape. The Collector refreshes library gauges on
// an interval.
package metrics
