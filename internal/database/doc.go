// Package database provides SQLite storage for the media streamer.
//
// It holds:
//   - The track library populated by the indexer
//   - Per-folder play counts updated when a track starts streaming
//   - Key/value metadata such as the last index run
//
// RandomTracks backs auto-random playback. The database uses WAL mode for
// concurrent reads while the indexer writes in batches.
package database
