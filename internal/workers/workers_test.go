package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv("TEST_WORKERS", "")
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"CPU-bound", 1.0, 0, available},
		{"I/O-bound", 2.0, 0, available * 2},
		{"Capped", 2.0, 1, 1},
		{"Tiny multiplier floors at one", 0.0001, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count("TEST_WORKERS", tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Expected %d workers, got %d", tt.want, got)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{"Override used", "5", 0, 5},
		{"Override capped", "50", 8, 8},
		{"Invalid override ignored", "many", 1, 1},
		{"Zero override ignored", "0", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_WORKERS", tt.env)
			if got := Count("TEST_WORKERS", 1.0, tt.limit); got != tt.want {
				t.Errorf("Expected %d workers, got %d", tt.want, got)
			}
		})
	}
}

func TestEmptyEnvKeySkipsOverride(t *testing.T) {
	if got := Count("", 1.0, 1); got != 1 {
		t.Errorf("Expected 1 worker, got %d", got)
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("TEST_WORKERS", "")
	available := runtime.GOMAXPROCS(0)

	if got := ForCPU("TEST_WORKERS", 0); got != available {
		t.Errorf("ForCPU: expected %d, got %d", available, got)
	}
	if got := ForIO("TEST_WORKERS", 0); got != available*2 {
		t.Errorf("ForIO: expected %d, got %d", available*2, got)
	}
	if got := ForMixed("TEST_WORKERS", 0); got != int(float64(available)*1.5) {
		t.Errorf("ForMixed: expected %d, got %d", int(float64(available)*1.5), got)
	}
}
