// Package player manages streaming player sessions.
//
// A Player bundles a client's settings (bit rate limit, preferred format,
// scrobble exemption) with its PlaybackQueue and the transfer status of its
// stream. The Registry holds every player by ID and is safe for concurrent
// use by the control API and stream handlers.
package player
