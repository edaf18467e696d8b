package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-streamer/internal/logging"
	"media-streamer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string `json:"status"`
	Ready             bool   `json:"ready"`
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Indexing          bool   `json:"indexing"`
	LastIndexed       string `json:"lastIndexed,omitempty"`
	InitialIndexError string `json:"initialIndexError,omitempty"`

	TracksIndexed  int64 `json:"tracksIndexed"`
	FoldersIndexed int64 `json:"foldersIndexed"`

	// Streaming
	Players            int  `json:"players"`
	TranscoderEnabled  bool `json:"transcoderEnabled"`
	TranscodeProcesses int  `json:"transcodeProcesses"`
	CachedTranscodes   int  `json:"cachedTranscodes"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalTracks  int `json:"totalTracks,omitempty"`
	TotalFolders int `json:"totalFolders,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Ready:              healthStatus.Ready,
		Version:            startup.Version,
		Uptime:             healthStatus.Uptime,
		Indexing:           healthStatus.Indexing,
		TracksIndexed:      healthStatus.TracksIndexed,
		FoldersIndexed:     healthStatus.FoldersIndexed,
		Players:            h.players.Count(),
		TranscoderEnabled:  h.transcoder.IsEnabled(),
		TranscodeProcesses: h.transcoder.ActiveProcesses(),
		CachedTranscodes:   h.cache.Len(),
		GoVersion:          runtime.Version(),
		NumCPU:             runtime.NumCPU(),
		NumGoroutine:       runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format(time.RFC3339)
	}

	if healthStatus.InitialIndexError != "" {
		response.InitialIndexError = healthStatus.InitialIndexError
		response.Status = statusDegraded
	}

	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		logging.Warn("Health check could not read library stats: %v", err)
	} else {
		response.TotalTracks = stats.TotalTracks
		response.TotalFolders = stats.TotalFolders
	}

	code := http.StatusOK
	if !healthStatus.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck always returns 200 while the server is running
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, startup.GetBuildInfo())
}

// MetricsHandler returns the Prometheus metrics handler
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
