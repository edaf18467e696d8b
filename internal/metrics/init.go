package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"transcode", "downsample", "passthrough"} {
		for _, status := range []string{"success", "error"} {
			TranscoderJobsTotal.WithLabelValues(kind, status)
		}
	}

	for _, result := range []string{"hit", "miss", "passthrough"} {
		TranscodeCacheRequests.WithLabelValues(result)
	}

	for _, result := range []string{"filled", "empty", "error"} {
		StreamRandomRefills.WithLabelValues(result)
	}

	for _, reason := range []string{"complete", "client_gone", "timeout", "error"} {
		StreamEndings.WithLabelValues(reason)
	}

	for _, hook := range []string{"play_count", "scrobble"} {
		AccountingFailures.WithLabelValues(hook)
	}

	for _, typ := range []string{"playing_now", "single"} {
		for _, status := range []string{"success", "error"} {
			ScrobbleSubmissionsTotal.WithLabelValues(typ, status)
		}
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemStaleErrors.WithLabelValues(op)
		for _, result := range []string{"success", "failure"} {
			FilesystemRetries.WithLabelValues(op, result)
		}
	}

	for _, typ := range []string{"music", "video"} {
		LibraryTracksTotal.WithLabelValues(typ)
	}
}
