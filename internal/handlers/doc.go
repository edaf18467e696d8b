// Package handlers provides the HTTP handlers for the media streamer API.
//
// It includes handlers for:
//   - Player registration and settings
//   - Queue inspection and control actions
//   - Continuous streaming of a player's queue
//   - Library browsing, random selection and re-indexing
//   - Health checks, version and metrics
package handlers
