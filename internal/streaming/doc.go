/*
Package streaming turns a player's play queue into the continuous byte
stream sent to that player, and delivers it over HTTP without letting a
stalled client hold server resources.

# Adapter

An Adapter reads from the current track's transcoded output and, when it
runs dry, advances the queue and opens the next track in the same Read
call. The reader sees one uninterrupted stream across track boundaries and
format changes, and io.EOF once the queue is stopped or exhausted.

Before every read the adapter reconciles its open stream with the queue's
current entry, so skips, removals and reorders made through the control
API take effect on the next read. Entries are compared by queue handle,
which keeps a track queued twice from being mistaken for itself.

When the queue is exhausted in auto-random mode the adapter asks the
library for a fresh batch of random tracks and replaces the queue with
them. It does this once per exhaustion; if the search comes back empty the
stream ends instead of searching again on every read.

Opening a track updates the folder play count and sends a now-playing
scrobble; closing it sends the stop scrobble. Failures in either are
logged and counted but never interrupt the stream.

# Delivery

StreamWithTimeout copies an io.Reader to an http.ResponseWriter through a
TimeoutWriter:

  - Per-write timeouts bound each write to the client
  - An idle timeout ends streams that make no progress
  - Every chunk is flushed so players start playback immediately
  - Request context cancellation is reported as ErrClientGone

Typical use from a handler:

	adapter := streaming.NewAdapter(r.Context(), cfg)
	defer adapter.Close()

	n, err := streaming.StreamWithTimeout(r.Context(), w, adapter, streaming.DefaultTimeoutWriterConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("stream ended after %d bytes: %v", n, err)
	}

# Transfer status

TransferStatus records what each player is receiving: the current track,
the bytes delivered and whether a stream is active. The control API reads
it to show now-playing information.
*/
package streaming
