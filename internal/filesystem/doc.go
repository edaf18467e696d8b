/*
Package filesystem wraps os.Stat and os.Open with retries for NFS stale file
handle errors (ESTALE).

Libraries are often mounted over NFS, where a file replaced on the server
side briefly returns ESTALE. Only that error is retried, with exponential
backoff capped at MaxBackoff; anything else fails immediately.

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())

Used by the transcoder for pass-through streams, by the indexer for change
detection and by WPL playlist resolution.
*/
package filesystem
