package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

// restoreLimit puts the runtime memory limit back after a test changes it.
func restoreLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestConfigureFromEnvNothingSet(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	l := ConfigureFromEnv()
	if l.Configured {
		t.Error("Expected Configured=false")
	}
	if l.Source != "none" {
		t.Errorf("Expected Source=none, got %q", l.Source)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	restoreLimit(t)
	t.Setenv("GOMEMLIMIT", "")

	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantRatio float64
	}{
		{"default ratio", "1073741824", "", DefaultMemoryRatio},
		{"custom ratio", "1073741824", "0.5", 0.5},
		{"ratio too high", "1073741824", "1.5", DefaultMemoryRatio},
		{"ratio not a number", "1073741824", "lots", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			l := ConfigureFromEnv()
			if !l.Configured || l.Source != "MEMORY_LIMIT" {
				t.Fatalf("Expected MEMORY_LIMIT to configure the limit, got %+v", l)
			}
			if l.Ratio != tt.wantRatio {
				t.Errorf("Expected Ratio=%v, got %v", tt.wantRatio, l.Ratio)
			}
			want := int64(float64(1073741824) * tt.wantRatio)
			if l.GoMemLimit != want {
				t.Errorf("Expected GoMemLimit=%d, got %d", want, l.GoMemLimit)
			}
			if got := debug.SetMemoryLimit(-1); got != want {
				t.Errorf("Expected runtime limit=%d, got %d", want, got)
			}
		})
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")

	for _, raw := range []string{"abc", "-5", "0"} {
		t.Setenv("MEMORY_LIMIT", raw)
		if l := ConfigureFromEnv(); l.Configured {
			t.Errorf("Expected MEMORY_LIMIT=%q to be ignored, got %+v", raw, l)
		}
	}
}

func TestConfigureFromEnvGOMEMLIMITWins(t *testing.T) {
	restoreLimit(t)
	debug.SetMemoryLimit(512 << 20)
	t.Setenv("GOMEMLIMIT", "512MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	l := ConfigureFromEnv()
	if l.Source != "GOMEMLIMIT" {
		t.Errorf("Expected Source=GOMEMLIMIT, got %q", l.Source)
	}
	if l.GoMemLimit != 512<<20 {
		t.Errorf("Expected GoMemLimit=%d, got %d", 512<<20, l.GoMemLimit)
	}
	if l.ContainerLimit != 0 {
		t.Errorf("Expected MEMORY_LIMIT to be ignored, got %d", l.ContainerLimit)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
		{math.MaxInt64, "8.0 EiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
