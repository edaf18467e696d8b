// Package scrobble reports plays to a ListenBrainz-compatible service.
//
// The stream path registers a "now playing" event when a track starts and a
// listen when it stops. Events are queued and posted by a background
// worker so a slow or unreachable service never stalls playback. When the
// queue is full new events are dropped with a warning. Without a configured
// URL events are only logged.
package scrobble
