package middleware

import (
	"net/http"
	"strings"
	"time"

	"media-streamer/internal/logging"
)

// responseWriter captures the status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps audio streams flowing through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig controls which requests are logged and how.
type LoggingConfig struct {
	SkipPaths []string
	// StreamPrefix marks long-lived stream requests. They are logged as
	// "stream closed" when they end, and also on open with LogStreamOpen.
	StreamPrefix    string
	LogStreamOpen   bool
	LogHealthChecks bool
	// Control requests slower than this are logged at warn.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the configuration used by the server.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		StreamPrefix:    "/rest/stream/",
		LogStreamOpen:   false,
		LogHealthChecks: true,
		SlowThreshold:   2 * time.Second,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// sanitizeLogField removes control characters that could forge log lines
// or inject terminal escapes.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\x00', r == '\x1b':
			continue
		case r < 0x20 && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logger returns HTTP access logging middleware. Each request becomes one
// structured log event.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			stream := config.StreamPrefix != "" && strings.HasPrefix(r.URL.Path, config.StreamPrefix)
			if stream && config.LogStreamOpen {
				logger := logging.Logger()
				logger.Info().
					Str("client", sanitizeLogField(getClientIP(r))).
					Str("path", sanitizeLogField(r.URL.Path)).
					Str("query", sanitizeLogField(r.URL.RawQuery)).
					Msg("stream opened")
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			logRequest(r, wrapped, time.Since(start), stream, config.SlowThreshold)
		})
	}
}

func logRequest(r *http.Request, rw *responseWriter, duration time.Duration, stream bool, slow time.Duration) {
	logger := logging.Logger()
	event := logger.Info()
	isSlow := !stream && slow > 0 && duration > slow
	if rw.statusCode >= http.StatusInternalServerError || isSlow {
		event = logger.Warn()
	}

	msg := "http request"
	if stream {
		msg = "stream closed"
	}
	if isSlow {
		event = event.Bool("slow", true)
	}

	event.
		Str("client", sanitizeLogField(getClientIP(r))).
		Str("method", sanitizeLogField(r.Method)).
		Str("path", sanitizeLogField(r.URL.Path)).
		Str("query", sanitizeLogField(r.URL.RawQuery)).
		Int("status", rw.statusCode).
		Int64("bytes", rw.bytesWritten).
		Dur("took", duration).
		Str("user_agent", sanitizeLogField(r.Header.Get("User-Agent"))).
		Msg(msg)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
