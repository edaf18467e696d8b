package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"media-streamer/internal/logging"
)

// Sentinel errors for delivering a stream to a client.
var (
	// ErrWriteTimeout indicates that a single write took longer than the
	// configured timeout, typically because the client reads too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrIdleTimeout indicates that no data was written for longer than the
	// configured idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed while a write was pending.
	ErrStreamCanceled = errors.New("stream canceled")
)

// progressInterval is how many bytes pass between OnProgress calls.
const progressInterval = 1024 * 1024

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout is the maximum time to wait for a single write operation
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes (0 = none).
	// StreamWithTimeout does not count time spent waiting on its source.
	IdleTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the copy buffer size and the largest single write
	ChunkSize int
	// OnProgress is called after every megabyte written
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns the defaults used for player streams.
// Audio players read at playback speed, so the idle timeout is generous.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		ChunkSize:    32 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter, flushing every chunk and
// giving up on clients that stop reading.
type TimeoutWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelCauseFunc
	config  TimeoutWriterConfig

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
	reading      bool
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancelCause(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}
	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()
	return tw
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}
	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	written := 0
	for len(p) > 0 {
		size := len(p)
		if tw.config.ChunkSize > 0 && size > tw.config.ChunkSize {
			size = tw.config.ChunkSize
		}

		n, err := tw.writeWithTimeout(p[:size])
		written += n
		if err != nil {
			return written, err
		}
		if tw.flusher != nil {
			tw.flusher.Flush()
		}
		p = p[size:]
	}
	return written, nil
}

// writeWithTimeout performs a single write with timeout
func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	timer := time.NewTimer(tw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.recordWrite(result.n)
		}
		return result.n, result.err

	case <-timer.C:
		tw.cancel(ErrWriteTimeout)
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) recordWrite(n int) {
	tw.mu.Lock()
	before := tw.bytesWritten
	tw.lastWrite = time.Now()
	tw.bytesWritten += int64(n)
	after := tw.bytesWritten
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && before/progressInterval != after/progressInterval {
		tw.config.OnProgress(after, time.Since(tw.startTime))
	}
}

// idleChecker cancels the stream when nothing has been written for too long.
func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			reading := tw.reading
			tw.mu.Unlock()

			if closed {
				return
			}
			if !reading && idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel(ErrIdleTimeout)
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// setReading marks whether the stream is blocked on its source. Leaving
// a read re-arms the idle clock.
func (tw *TimeoutWriter) setReading(reading bool) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.reading = reading
	if !reading {
		tw.lastWrite = time.Now()
	}
}

// contextError maps the reason the writer's context ended to a sentinel.
func (tw *TimeoutWriter) contextError() error {
	cause := context.Cause(tw.ctx)
	switch {
	case errors.Is(cause, ErrWriteTimeout), errors.Is(cause, ErrIdleTimeout), errors.Is(cause, ErrStreamCanceled):
		return cause
	case errors.Is(cause, context.Canceled):
		return ErrClientGone
	default:
		return ErrStreamCanceled
	}
}

// Close marks the writer as closed
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel(ErrStreamCanceled)
	return nil
}

// Stats returns streaming statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// StreamWithTimeout copies r to the response until r reports io.EOF, the
// client goes away or a timeout fires. It returns the number of bytes
// delivered.
func StreamWithTimeout(ctx context.Context, w http.ResponseWriter, r io.Reader, config TimeoutWriterConfig) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")

	bufSize := config.ChunkSize
	if bufSize <= 0 {
		bufSize = 32 * 1024
	}
	_, err := io.CopyBuffer(tw, sourceReader{r: r, tw: tw}, make([]byte, bufSize))

	bytesWritten, duration := tw.Stats()
	logging.Debug("Stream completed: %d bytes in %v", bytesWritten, duration)
	return bytesWritten, err
}

// sourceReader pauses the idle clock while r produces data; a transcode
// buffered in full before its first byte is not a stalled client. It also
// hides WriterTo so io.CopyBuffer uses the given buffer.
type sourceReader struct {
	r  io.Reader
	tw *TimeoutWriter
}

func (s sourceReader) Read(p []byte) (int, error) {
	s.tw.setReading(true)
	defer s.tw.setReading(false)
	return s.r.Read(p)
}
