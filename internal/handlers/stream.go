package handlers

import (
	"errors"
	"net/http"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
	"media-streamer/internal/player"
	"media-streamer/internal/streaming"
	"media-streamer/internal/transcoder"
)

// streamOptions reads the per-request stream parameters.
func streamOptions(r *http.Request) (player.StreamOptions, error) {
	var opts player.StreamOptions
	var err error

	if opts.MaxBitRate, err = queryInt(r, "maxBitRate", 0); err != nil {
		return opts, err
	}
	opts.Format = r.URL.Query().Get("format")

	if opts.Video.Width, err = queryInt(r, "width", 0); err != nil {
		return opts, err
	}
	if opts.Video.Height, err = queryInt(r, "height", 0); err != nil {
		return opts, err
	}
	if opts.Video.TimeOffset, err = queryInt(r, "timeOffset", 0); err != nil {
		return opts, err
	}
	if opts.Video.Duration, err = queryInt(r, "duration", 0); err != nil {
		return opts, err
	}
	return opts, nil
}

// StreamPlayer serves a player's queue as one continuous stream. The
// response ends when the queue stops or runs out, the client goes away or
// a write times out.
// GET /rest/stream/{id}
func (h *Handlers) StreamPlayer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}

	opts, err := streamOptions(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	session := p.Session(opts)

	adapter := streaming.NewAdapter(r.Context(), streaming.Config{
		Session:         session,
		Queue:           p.Queue(),
		Resolver:        h.transcoder,
		Source:          h.cache,
		Random:          h.db,
		PlayCounter:     h.db,
		Scrobbler:       h.scrobbler,
		Status:          p.Status(),
		RandomBatchSize: h.randomBatchSize,
	})
	defer func() {
		if err := adapter.Close(); err != nil {
			logging.Warn("Failed to close stream for player %s: %v", p.ID(), err)
		}
	}()

	status := p.Status()
	if status.IsActive() {
		logging.Debug("Player %s already has a stream attached", p.ID())
	}
	status.Begin()
	defer status.End()

	w.Header().Set("Content-Type", h.contentType(p, session))

	written, err := streaming.StreamWithTimeout(r.Context(), w, adapter, h.writerConfig)
	reason := endReason(err)
	metrics.StreamEndings.WithLabelValues(reason).Inc()

	logger := logging.Logger()
	event := logger.Info()
	if reason == "error" {
		event = logger.Warn().Err(err)
	}
	event.Str("player", p.ID()).
		Str("user", session.Username).
		Int64("bytes", written).
		Str("reason", reason).
		Msg("stream ended")

	if written == 0 && reason == "error" {
		code := http.StatusInternalServerError
		if errors.Is(err, transcoder.ErrTranscodingDisabled) || errors.Is(err, transcoder.ErrUnsupportedFormat) {
			code = http.StatusUnsupportedMediaType
		}
		writeJSONError(w, "Failed to open stream", code)
	}
}

// contentType guesses the stream's type from the current track. A stream
// can span several tracks, so this is only exact when they share a format.
func (h *Handlers) contentType(p *player.Player, session streaming.Session) string {
	track, ok := p.Queue().CurrentTrack()
	if !ok {
		return "audio/mpeg"
	}
	params := h.transcoder.Parameters(track, session.Profile, session.MaxBitRate, session.PreferredFormat, session.Video)
	return params.MimeType()
}

// endReason maps a stream error to the metrics label.
func endReason(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, streaming.ErrClientGone), errors.Is(err, streaming.ErrStreamCanceled):
		return "client_gone"
	case errors.Is(err, streaming.ErrWriteTimeout), errors.Is(err, streaming.ErrIdleTimeout):
		return "timeout"
	default:
		return "error"
	}
}
