package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"media-streamer/internal/handlers"
	"media-streamer/internal/startup"
)

func TestSetupRouterMatchesRoutes(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil, nil, nil, &startup.Config{})
	router := setupRouter(h)

	tests := []struct {
		method string
		path   string
		vars   map[string]string
	}{
		{"GET", "/health", nil},
		{"HEAD", "/livez", nil},
		{"GET", "/readyz", nil},
		{"GET", "/version", nil},
		{"GET", "/api/players", nil},
		{"POST", "/api/players", nil},
		{"PUT", "/api/players/p1", map[string]string{"id": "p1"}},
		{"DELETE", "/api/players/p1", map[string]string{"id": "p1"}},
		{"GET", "/api/players/p1/status", map[string]string{"id": "p1"}},
		{"GET", "/api/players/p1/queue", map[string]string{"id": "p1"}},
		{"POST", "/api/players/p1/queue/shuffle", map[string]string{"id": "p1", "action": "shuffle"}},
		{"GET", "/api/library/folders", nil},
		{"GET", "/api/library/tracks/42", map[string]string{"trackId": "42"}},
		{"GET", "/api/library/tracks/42/length", map[string]string{"trackId": "42"}},
		{"GET", "/api/library/random", nil},
		{"GET", "/api/library/stats", nil},
		{"POST", "/api/library/reindex", nil},
		{"GET", "/rest/stream/p1", map[string]string{"id": "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var match mux.RouteMatch
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if !router.Match(req, &match) {
				t.Fatalf("Expected %s %s to match a route", tt.method, tt.path)
			}
			for k, want := range tt.vars {
				if got := match.Vars[k]; got != want {
					t.Errorf("Expected var %s=%s, got %s", k, want, got)
				}
			}
		})
	}
}

func TestSetupRouterRejects(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil, nil, nil, &startup.Config{})
	router := setupRouter(h)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/library/tracks/abc"},
		{"POST", "/rest/stream/p1"},
		{"GET", "/api/players/p1/queue/next"},
		{"GET", "/nope"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var match mux.RouteMatch
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if router.Match(req, &match) && match.MatchErr == nil {
				t.Errorf("Expected %s %s not to match", tt.method, tt.path)
			}
		})
	}
}

func TestStartMetricsServer(t *testing.T) {
	srv := startMetricsServer("0")
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 from /metrics, got %d", rec.Code)
	}
}
