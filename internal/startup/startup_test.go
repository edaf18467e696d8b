package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestSourceGet(t *testing.T) {
	src := &source{file: map[string]string{"FROM_FILE": "file", "BOTH": "file"}}
	t.Setenv("BOTH", "env")
	t.Setenv("EMPTY_ENV", "")

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"Environment wins over file", "BOTH", "env"},
		{"Falls back to file", "FROM_FILE", "file"},
		{"Falls back to default", "NOWHERE_SET", "default"},
		{"Empty env uses default", "EMPTY_ENV", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := src.get(tt.key, "default"); got != tt.want {
				t.Errorf("get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSourceTypedValues(t *testing.T) {
	src := &source{file: map[string]string{}}

	tests := []struct {
		name string
		env  string
		run  func() interface{}
		want interface{}
	}{
		{"bool true", "1", func() interface{} { return src.getBool("TEST_TYPED", false) }, true},
		{"bool invalid", "maybe", func() interface{} { return src.getBool("TEST_TYPED", true) }, true},
		{"int", "12", func() interface{} { return src.getInt("TEST_TYPED", 3) }, 12},
		{"int invalid", "twelve", func() interface{} { return src.getInt("TEST_TYPED", 3) }, 3},
		{"int negative", "-4", func() interface{} { return src.getInt("TEST_TYPED", 3) }, 3},
		{"duration", "90s", func() interface{} { return src.getDuration("TEST_TYPED", time.Minute) }, 90 * time.Second},
		{"duration invalid", "soon", func() interface{} { return src.getDuration("TEST_TYPED", time.Minute) }, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TYPED", tt.env)
			if got := tt.run(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSourceParseYAML(t *testing.T) {
	src := &source{file: make(map[string]string)}
	data := []byte(`
media_dir: /srv/music
RANDOM_BATCH_SIZE: 50
metrics_enabled: false
scrobble_url: https://api.example.org
default_format:
`)
	if err := src.parse(data); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := map[string]string{
		"MEDIA_DIR":         "/srv/music",
		"RANDOM_BATCH_SIZE": "50",
		"METRICS_ENABLED":   "false",
		"SCROBBLE_URL":      "https://api.example.org",
	}
	for k, v := range want {
		if src.file[k] != v {
			t.Errorf("Expected %s=%q, got %q", k, v, src.file[k])
		}
	}
	if _, ok := src.file["DEFAULT_FORMAT"]; ok {
		t.Error("Expected null values to be skipped")
	}
}

func TestSourceParseInvalidYAML(t *testing.T) {
	src := &source{file: make(map[string]string)}
	if err := src.parse([]byte("- just\n- a list")); err == nil {
		t.Error("Expected error for non-mapping YAML")
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	src := &source{file: map[string]string{}}
	for _, key := range []string{"MEDIA_DIR", "PORT", "RANDOM_BATCH_SIZE", "TRANSCODE_CACHE_ENTRIES", "DEFAULT_FORMAT", "SCROBBLE_URL"} {
		t.Setenv(key, "")
	}

	c := buildConfig(src)
	if c.MediaDir != "/media" {
		t.Errorf("Expected MediaDir=/media, got %s", c.MediaDir)
	}
	if c.Port != "8080" {
		t.Errorf("Expected Port=8080, got %s", c.Port)
	}
	if c.RandomBatchSize != 20 {
		t.Errorf("Expected RandomBatchSize=20, got %d", c.RandomBatchSize)
	}
	if c.TranscodeCacheEntries != 4 {
		t.Errorf("Expected TranscodeCacheEntries=4, got %d", c.TranscodeCacheEntries)
	}
	if c.ScrobbleURL != "" {
		t.Errorf("Expected no scrobble URL, got %s", c.ScrobbleURL)
	}
}

func TestBuildConfigFromFile(t *testing.T) {
	src := &source{file: map[string]string{"DEFAULT_FORMAT": "OGG", "DEFAULT_MAX_BITRATE": "192"}}
	t.Setenv("DEFAULT_FORMAT", "")
	t.Setenv("DEFAULT_MAX_BITRATE", "")

	c := buildConfig(src)
	if c.DefaultFormat != "ogg" {
		t.Errorf("Expected DefaultFormat=ogg, got %s", c.DefaultFormat)
	}
	if c.DefaultMaxBitRate != 192 {
		t.Errorf("Expected DefaultMaxBitRate=192, got %d", c.DefaultMaxBitRate)
	}
}

func TestLoadSourceMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loadSource(); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")

	src, err := loadSource()
	if err != nil {
		t.Fatalf("loadSource failed: %v", err)
	}
	if got := src.get("PORT", "8080"); got != "9999" {
		t.Errorf("Expected PORT=9999, got %s", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MEDIA_DIR", filepath.Join(dir, "media"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.DatabasePath != filepath.Join(dir, "db", "media.db") {
		t.Errorf("Unexpected DatabasePath %s", c.DatabasePath)
	}
	if _, err := os.Stat(c.MediaDir); err != nil {
		t.Errorf("Expected media directory to be created: %v", err)
	}
}

func TestEnsureDirectoryRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(path, "test"); err == nil {
		t.Error("Expected error when path is a file")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/api/players", noop).Methods("GET", "POST").Name("players")
	router.HandleFunc("/rest/stream/{player}", noop).Methods("GET")
	router.HandleFunc("/healthz", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("Expected 4 routes, got %d: %+v", len(routes), routes)
	}
	if routes[0].Name != "players" {
		t.Errorf("Expected first route named players, got %q", routes[0].Name)
	}
	if routes[3].Method != "*" {
		t.Errorf("Expected wildcard method for route without methods, got %s", routes[3].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/players/{id}/queue", "api/players"},
		{"/rest/stream/{player}", "rest/stream"},
		{"/healthz", "healthz"},
		{"/", ""},
		{"/api", "api"},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEnabledString(t *testing.T) {
	if enabledString(true) != "ENABLED" || enabledString(false) != "DISABLED" {
		t.Error("Unexpected enabledString output")
	}
}
