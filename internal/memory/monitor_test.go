package memory

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		LimitBytes:    1000,
		HighWaterMark: 0.8,
		LowWaterMark:  0.5,
		CheckInterval: 10 * time.Millisecond,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LimitBytes != 0 {
		t.Errorf("Expected LimitBytes=0, got %d", cfg.LimitBytes)
	}
	if cfg.LowWaterMark >= cfg.HighWaterMark {
		t.Errorf("Expected LowWaterMark < HighWaterMark, got %v >= %v", cfg.LowWaterMark, cfg.HighWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval=5s, got %v", cfg.CheckInterval)
	}
}

func TestObserveRunsReliefOncePerEpisode(t *testing.T) {
	m := NewMonitor(testConfig())
	calls := 0
	m.OnPressure(func() { calls++ })

	samples := []struct {
		alloc       uint64
		wantStarted bool
		wantPressed bool
	}{
		{100, false, false},
		{850, true, true},
		{900, false, true},
		{600, false, true}, // between the marks
		{400, false, false},
		{820, true, true},
	}

	for i, s := range samples {
		if got := m.observe(s.alloc); got != s.wantStarted {
			t.Errorf("sample %d (%d): expected started=%v, got %v", i, s.alloc, s.wantStarted, got)
		}
		if got := m.UnderPressure(); got != s.wantPressed {
			t.Errorf("sample %d (%d): expected pressure=%v, got %v", i, s.alloc, s.wantPressed, got)
		}
	}
	if calls != 2 {
		t.Errorf("Expected relief to run twice, got %d", calls)
	}
}

func TestObserveWithoutLimit(t *testing.T) {
	m := &Monitor{config: testConfig(), stopChan: make(chan struct{})}
	m.OnPressure(func() { t.Error("relief must not run without a limit") })

	if m.observe(1 << 40) {
		t.Error("Expected no pressure episode without a limit")
	}
	if m.Enabled() {
		t.Error("Expected Enabled=false")
	}
}

func TestNewMonitorFixesLowWaterMark(t *testing.T) {
	cfg := testConfig()
	cfg.LowWaterMark = 0.95

	m := NewMonitor(cfg)
	if m.config.LowWaterMark != cfg.HighWaterMark {
		t.Errorf("Expected LowWaterMark clamped to %v, got %v", cfg.HighWaterMark, m.config.LowWaterMark)
	}
}

func TestUsage(t *testing.T) {
	m := NewMonitor(testConfig())
	m.observe(250)

	current, limit, ratio := m.Usage()
	if current != 250 || limit != 1000 {
		t.Errorf("Expected 250/1000, got %d/%d", current, limit)
	}
	if ratio != 0.25 {
		t.Errorf("Expected ratio=0.25, got %v", ratio)
	}
}

func TestStartStop(t *testing.T) {
	m := NewMonitor(testConfig())
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()

	if _, _, ratio := m.Usage(); ratio <= 0 {
		t.Errorf("Expected the monitor to have sampled the heap, got ratio=%v", ratio)
	}
}
