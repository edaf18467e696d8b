package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-streamer/internal/database"
	"media-streamer/internal/handlers"
	"media-streamer/internal/indexer"
	"media-streamer/internal/logging"
	"media-streamer/internal/memory"
	"media-streamer/internal/metrics"
	"media-streamer/internal/middleware"
	"media-streamer/internal/player"
	"media-streamer/internal/scrobble"
	"media-streamer/internal/startup"
	"media-streamer/internal/transcoder"
)

const metricsCollectInterval = time.Minute

// services are the background components stopped on shutdown.
type services struct {
	server        *http.Server
	metricsServer *http.Server
	indexer       *indexer.Indexer
	scrobbler     *scrobble.Submitter
	collector     *metrics.Collector
	monitor       *memory.Monitor
	transcoder    *transcoder.Transcoder
	players       *player.Registry
}

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, runtime.Version()).Set(1)

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize transcoder
	trans := transcoder.New(config.MediaDir, startup.LogTranscoderInit(config.TranscodingEnabled))
	cache := transcoder.NewCache(trans, config.TranscodeCacheEntries)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.OnPressure(cache.Purge)
	monitor.Start()

	// Initialize indexer
	startup.LogIndexerInit(config.IndexInterval, config.PollInterval)
	idx := indexer.New(db, config.MediaDir, config.IndexInterval)
	idx.SetPollInterval(config.PollInterval)
	if trans.IsEnabled() {
		idx.SetProber(trans)
	}

	// Start indexer in background (non-blocking)
	go func() {
		if err := idx.Start(); err != nil {
			logging.Error("Failed to start indexer: %v", err)
		}
	}()
	startup.LogIndexerStarted()

	startup.LogScrobblerInit(config.ScrobbleURL)
	scrobbler := scrobble.New(scrobble.Config{URL: config.ScrobbleURL, Token: config.ScrobbleToken})
	scrobbler.Start()

	players := player.NewRegistry()

	collector := metrics.NewCollector(db, players, metricsCollectInterval)
	collector.Start()

	h := handlers.New(db, idx, trans, cache, players, scrobbler, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStreamOpen, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStreamOpen = config.LogStreamOpen
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(middleware.Logger(loggingConfig)(router))

	// WriteTimeout stays 0; streams run until the queue ends and the
	// timeout writer bounds each write instead.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	svc := &services{
		server:     srv,
		indexer:    idx,
		scrobbler:  scrobbler,
		collector:  collector,
		monitor:    monitor,
		transcoder: trans,
		players:    players,
	}
	if config.MetricsEnabled {
		svc.metricsServer = startMetricsServer(config.MetricsPort)
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(svc)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Players
	api.HandleFunc("/players", h.ListPlayers).Methods("GET")
	api.HandleFunc("/players", h.CreatePlayer).Methods("POST")
	api.HandleFunc("/players/{id}", h.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{id}", h.UpdatePlayer).Methods("PUT")
	api.HandleFunc("/players/{id}", h.DeletePlayer).Methods("DELETE")
	api.HandleFunc("/players/{id}/status", h.GetTransferStatus).Methods("GET")

	// Queue control
	api.HandleFunc("/players/{id}/queue", h.GetQueue).Methods("GET")
	api.HandleFunc("/players/{id}/queue/{action}", h.QueueAction).Methods("POST")

	// Library
	api.HandleFunc("/library/folders", h.ListFolder).Methods("GET")
	api.HandleFunc("/library/tracks/{trackId:[0-9]+}", h.GetTrack).Methods("GET")
	api.HandleFunc("/library/tracks/{trackId:[0-9]+}/length", h.GetTranscodedLength).Methods("GET")
	api.HandleFunc("/library/random", h.RandomTracks).Methods("GET")
	api.HandleFunc("/library/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/library/reindex", h.TriggerReindex).Methods("POST")

	// Streaming
	r.HandleFunc("/rest/stream/{id}", h.StreamPlayer).Methods("GET")

	return r
}

// startMetricsServer serves Prometheus metrics on their own port.
func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(svc *services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	svc.collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	svc.monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Stopping indexer")
	svc.indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	// Stopping every queue lets attached streams finish their current read.
	startup.LogShutdownStep("Stopping players")
	for _, p := range svc.players.List() {
		if err := svc.players.Remove(p.ID()); err != nil {
			logging.Debug("Player %s already removed", p.ID())
		}
	}
	startup.LogShutdownStepComplete("Players stopped")

	startup.LogShutdownStep("Cleaning up transcoder")
	svc.transcoder.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if svc.metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := svc.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := svc.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// Flush pending scrobbles after the last stream has closed.
	startup.LogShutdownStep("Flushing scrobbles")
	svc.scrobbler.Stop()
	startup.LogShutdownStepComplete("Scrobbler stopped")

	startup.LogShutdownComplete()
}
