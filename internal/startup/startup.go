package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-streamer/internal/logging"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	IndexInterval   time.Duration
	PollInterval    time.Duration
	LogStreamOpen   bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// Streaming
	TranscodingEnabled    bool
	TranscodeCacheEntries int
	DefaultMaxBitRate     int
	DefaultFormat         string
	RandomBatchSize       int
	StreamWriteTimeout    time.Duration
	StreamIdleTimeout     time.Duration

	// Scrobbling; an empty URL logs scrobbles without submitting them
	ScrobbleURL   string
	ScrobbleToken string

	// Derived paths
	DatabasePath string
}

// source resolves configuration keys from the environment first and the
// optional config file second.
type source struct {
	file map[string]string
}

// loadSource reads CONFIG_FILE if set. Keys may be written as MEDIA_DIR or
// media_dir.
func loadSource() (*source, error) {
	s := &source{file: make(map[string]string)}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := s.parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	logging.Info("  Config file:         %s (%d keys)", path, len(s.file))
	return s, nil
}

func (s *source) parse(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		s.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return nil
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s *source) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s *source) getInt(key string, defaultValue int) int {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s *source) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("  Invalid %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return parsed
}

// LoadConfig loads and validates configuration from environment variables
// and the optional CONFIG_FILE.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	src, err := loadSource()
	if err != nil {
		return nil, err
	}

	config := buildConfig(src)
	logConfig(config, src)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.MediaDir, err = filepath.Abs(config.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", config.MediaDir)

	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)
	config.DatabasePath = filepath.Join(config.DatabaseDir, "media.db")

	// Check/create media directory (warning only)
	if err := ensureDirectory(config.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Transcoding: %s", enabledString(config.TranscodingEnabled))
	logging.Info("    Scrobbling:  %s", enabledString(config.ScrobbleURL != ""))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func buildConfig(src *source) *Config {
	return &Config{
		MediaDir:              src.get("MEDIA_DIR", "/media"),
		DatabaseDir:           src.get("DATABASE_DIR", "/database"),
		Port:                  src.get("PORT", "8080"),
		MetricsPort:           src.get("METRICS_PORT", "9090"),
		IndexInterval:         src.getDuration("INDEX_INTERVAL", 30*time.Minute),
		PollInterval:          src.getDuration("POLL_INTERVAL", 30*time.Second),
		LogStreamOpen:         src.getBool("LOG_STREAM_OPEN", false),
		LogHealthChecks:       src.getBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:        src.getBool("METRICS_ENABLED", true),
		TranscodingEnabled:    src.getBool("TRANSCODING_ENABLED", true),
		TranscodeCacheEntries: src.getInt("TRANSCODE_CACHE_ENTRIES", 4),
		DefaultMaxBitRate:     src.getInt("DEFAULT_MAX_BITRATE", 0),
		DefaultFormat:         strings.ToLower(src.get("DEFAULT_FORMAT", "")),
		RandomBatchSize:       src.getInt("RANDOM_BATCH_SIZE", 20),
		StreamWriteTimeout:    src.getDuration("STREAM_WRITE_TIMEOUT", 30*time.Second),
		StreamIdleTimeout:     src.getDuration("STREAM_IDLE_TIMEOUT", 2*time.Minute),
		ScrobbleURL:           src.get("SCROBBLE_URL", ""),
		ScrobbleToken:         src.get("SCROBBLE_TOKEN", ""),
	}
}

func logConfig(c *Config, src *source) {
	logging.Info("  MEDIA_DIR:               %s", c.MediaDir)
	logging.Info("  DATABASE_DIR:            %s", c.DatabaseDir)
	logging.Info("  PORT:                    %s", c.Port)
	logging.Info("  METRICS_PORT:            %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", c.MetricsEnabled)
	logging.Info("  INDEX_INTERVAL:          %v", c.IndexInterval)
	logging.Info("  POLL_INTERVAL:           %v", c.PollInterval)
	logging.Info("  TRANSCODING_ENABLED:     %v", c.TranscodingEnabled)
	logging.Info("  TRANSCODE_CACHE_ENTRIES: %d", c.TranscodeCacheEntries)
	logging.Info("  DEFAULT_MAX_BITRATE:     %d", c.DefaultMaxBitRate)
	logging.Info("  DEFAULT_FORMAT:          %s", c.DefaultFormat)
	logging.Info("  RANDOM_BATCH_SIZE:       %d", c.RandomBatchSize)
	logging.Info("  STREAM_WRITE_TIMEOUT:    %v", c.StreamWriteTimeout)
	logging.Info("  STREAM_IDLE_TIMEOUT:     %v", c.StreamIdleTimeout)
	logging.Info("  SCROBBLE_URL:            %s", c.ScrobbleURL)
	if src.get("SCROBBLE_TOKEN", "") != "" {
		logging.Info("  SCROBBLE_TOKEN:          (set)")
	}
	logging.Info("  LOG_STREAM_OPEN:         %v", c.LogStreamOpen)
	logging.Info("  LOG_HEALTH_CHECKS:       %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg.
// It returns false when transcoding should stay off.
func LogTranscoderInit(enabled bool) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Warn("  Transcoding disabled by configuration")
		logging.Warn("  Tracks will be streamed as stored")
		return false
	}

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Tracks will be streamed as stored")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval, pollInterval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Index interval: %v", interval)
	logging.Info("  Poll interval:  %v", pollInterval)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// LogScrobblerInit logs where scrobbles go
func LogScrobblerInit(url string) {
	if url == "" {
		logging.Info("  Scrobbling: log only (SCROBBLE_URL not set)")
		return
	}
	logging.Info("  Scrobbling to %s", url)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logStreamOpen, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStreamOpen {
		logging.Info("    Stream open logging: ON")
	} else {
		logging.Info("    Stream open logging: OFF (set LOG_STREAM_OPEN=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if (first == "api" || first == "rest") && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return first + "/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Control API:   http://0.0.0.0:%s/api/players", config.Port)
	logging.Info("    Streams:       http://0.0.0.0:%s/rest/stream/{player}", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          _____ __
   /  |/  /__  ____/ (_)___ _   / ___// /_________  ____ _____ ___
  / /|_/ / _ \/ __  / / __ '/   \__ \/ __/ ___/ _ \/ __ '/ __ '__ \
 / /  / /  __/ /_/ / / /_/ /   ___/ / /_/ /  /  __/ /_/ / / / / / /
/_/  /_/\___/\__,_/_/\__,_/   /____/\__/_/   \___/\__,_/_/ /_/ /_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("%s not found in PATH", tool)
		}
		logging.Debug("  %s path: %s", tool, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(line))
	}

	return nil
}
