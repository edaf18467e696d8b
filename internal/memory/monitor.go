package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
)

// Config controls the pressure monitor.
type Config struct {
	// LimitBytes is the heap limit; 0 uses GOMEMLIMIT, and with neither
	// set the monitor does nothing.
	LimitBytes int64
	// HighWaterMark is the usage fraction that starts a pressure episode.
	HighWaterMark float64
	// LowWaterMark is the usage fraction that ends it.
	LowWaterMark  float64
	CheckInterval time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		HighWaterMark: 0.85,
		LowWaterMark:  0.70,
		CheckInterval: 5 * time.Second,
	}
}

// Monitor samples heap usage and runs the registered relief functions
// once each time usage crosses the high water mark.
type Monitor struct {
	config   Config
	limit    int64
	stopOnce sync.Once
	stopChan chan struct{}

	mu        sync.Mutex
	current   uint64
	pressured bool
	relievers []func()
}

// NewMonitor creates a monitor. Start it to begin sampling.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < 1<<62 {
			limit = goLimit
		}
	}
	if config.LowWaterMark <= 0 || config.LowWaterMark > config.HighWaterMark {
		config.LowWaterMark = config.HighWaterMark
	}
	return &Monitor{config: config, limit: limit, stopChan: make(chan struct{})}
}

// OnPressure registers fn to run when a pressure episode starts.
func (m *Monitor) OnPressure(fn func()) {
	m.mu.Lock()
	m.relievers = append(m.relievers, fn)
	m.mu.Unlock()
}

// Enabled reports whether a limit is known.
func (m *Monitor) Enabled() bool {
	return m.limit > 0
}

// Start begins sampling. It does nothing without a limit.
func (m *Monitor) Start() {
	if !m.Enabled() {
		logging.Info("Memory monitor disabled: no memory limit configured")
		return
	}
	logging.Info("Memory monitor watching %s limit", FormatBytes(m.limit))
	go m.loop()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.observe(stats.HeapAlloc)
		case <-m.stopChan:
			return
		}
	}
}

// observe records one heap sample and reports whether it started a
// pressure episode.
func (m *Monitor) observe(alloc uint64) bool {
	if m.limit <= 0 {
		return false
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	m.current = alloc
	started := false
	switch {
	case !m.pressured && usage >= m.config.HighWaterMark:
		m.pressured = true
		started = true
	case m.pressured && usage < m.config.LowWaterMark:
		m.pressured = false
		metrics.MemoryPressure.Set(0)
		logging.Info("Memory pressure cleared (%.0f%% of limit)", usage*100)
	}
	relievers := m.relievers
	m.mu.Unlock()

	if started {
		metrics.MemoryPressure.Set(1)
		metrics.MemoryPressureEvents.Inc()
		logging.Warn("Memory pressure (%.0f%% of limit), releasing caches", usage*100)
		for _, fn := range relievers {
			fn()
		}
		runtime.GC()
	}
	return started
}

// UnderPressure reports whether a pressure episode is in progress.
func (m *Monitor) UnderPressure() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pressured
}

// Usage returns the last sampled heap size, the limit and their ratio.
func (m *Monitor) Usage() (current, limit int64, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current = int64(min(m.current, uint64(1<<63-1)))
	if m.limit > 0 {
		ratio = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, ratio
}
