package handlers

import (
	"media-streamer/internal/database"
	"media-streamer/internal/indexer"
	"media-streamer/internal/player"
	"media-streamer/internal/startup"
	"media-streamer/internal/streaming"
	"media-streamer/internal/transcoder"
)

// Handlers holds the dependencies shared by the HTTP handlers.
type Handlers struct {
	db         *database.Database
	indexer    *indexer.Indexer
	transcoder *transcoder.Transcoder
	cache      *transcoder.Cache
	players    *player.Registry
	scrobbler  streaming.Scrobbler
	mediaDir   string

	// defaults for players created without explicit settings
	defaultMaxBitRate int
	defaultFormat     string
	randomBatchSize   int
	writerConfig      streaming.TimeoutWriterConfig
}

// New wires the handlers. scrobbler may be nil.
func New(db *database.Database, idx *indexer.Indexer, trans *transcoder.Transcoder, cache *transcoder.Cache,
	players *player.Registry, scrobbler streaming.Scrobbler, config *startup.Config,
) *Handlers {
	writerConfig := streaming.DefaultTimeoutWriterConfig()
	if config.StreamWriteTimeout > 0 {
		writerConfig.WriteTimeout = config.StreamWriteTimeout
	}
	if config.StreamIdleTimeout > 0 {
		writerConfig.IdleTimeout = config.StreamIdleTimeout
	}

	return &Handlers{
		db:                db,
		indexer:           idx,
		transcoder:        trans,
		cache:             cache,
		players:           players,
		scrobbler:         scrobbler,
		mediaDir:          config.MediaDir,
		defaultMaxBitRate: config.DefaultMaxBitRate,
		defaultFormat:     config.DefaultFormat,
		randomBatchSize:   config.RandomBatchSize,
		writerConfig:      writerConfig,
	}
}
