// Package indexer keeps the track library in sync with the media directory.
//
// A run walks the directory tree, turns every playable audio or video file
// into a track (artist, album, track number and title come from the
// Artist/Album/NN - Title layout) and writes the tracks to the database in
// batches. When a Prober is configured, new or modified files are probed
// for bit rate and duration on a small worker pool.
//
// The indexer runs:
//   - Once at startup
//   - Periodically, at the configured interval
//   - When polling notices top-level changes in the media directory
//   - On demand via TriggerIndex
//
// Tracks whose files disappeared are removed at the end of each complete
// run. Hidden files and directories (prefixed with '.') are skipped.
package indexer
