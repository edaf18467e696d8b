package metrics

import (
	"context"
	"time"

	"media-streamer/internal/logging"
	"media-streamer/internal/media"
)

// StatsProvider supplies library statistics for the collector.
type StatsProvider interface {
	GetStats(ctx context.Context) (media.LibraryStats, error)
}

// PlayerCounter reports the number of registered players.
type PlayerCounter interface {
	Count() int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	players       PlayerCounter
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. players may be nil.
func NewCollector(provider StatsProvider, players PlayerCounter, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		players:       players,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.players != nil {
		PlayersTotal.Set(float64(c.players.Count()))
	}

	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryTracksTotal.WithLabelValues("music").Set(float64(stats.TotalMusic))
	LibraryTracksTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	LibraryFoldersTotal.Set(float64(stats.TotalFolders))

	logging.Debug("Metrics collected: tracks=%d, folders=%d", stats.TotalTracks, stats.TotalFolders)
}
