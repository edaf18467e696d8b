package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheEntries is the size of the recent-entry cache when none is configured.
const DefaultCacheEntries = 4

// Source produces transcoded output for a set of parameters.
type Source interface {
	TranscodedStream(ctx context.Context, p Parameters) (io.ReadCloser, error)
}

// Cache sits in front of a Source and replays transcoded output for
// repeated requests with identical parameters.
//
// The most recently used entry is always kept. A small LRU of recent
// entries sits behind it; evicting from the LRU only drops the cache's
// reference, so readers already holding a stream are unaffected.
// Parameters that need no processing bypass the cache.
type Cache struct {
	source Source

	mu     sync.Mutex
	last   *cacheEntry
	recent *lru.Cache[Parameters, *cacheEntry]
}

// NewCache creates a cache holding up to entries recent outputs besides
// the most recent one.
func NewCache(source Source, entries int) *Cache {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	recent, err := lru.NewWithEvict(entries, func(p Parameters, _ *cacheEntry) {
		metrics.TranscodeCacheEvictions.Inc()
		logging.Debug("Transcode cache evicted %s", p)
	})
	if err != nil {
		// Only a non-positive size makes NewWithEvict fail.
		panic(err)
	}
	return &Cache{source: source, recent: recent}
}

// GetStream returns a reader over the output for p. The first request for
// a given p runs the source and buffers its whole output; later requests
// with equal parameters replay the buffer without running the source
// again.
func (c *Cache) GetStream(ctx context.Context, p Parameters) (io.ReadCloser, error) {
	if !p.NeedsProcessing() {
		metrics.TranscodeCacheRequests.WithLabelValues("passthrough").Inc()
		return c.source.TranscodedStream(ctx, p)
	}

	e := c.entry(p)
	rc, err := e.open(ctx, c.source)
	if err != nil {
		// An entry abandoned by a departed reader stays for the next one.
		if ctx.Err() == nil {
			c.forget(e)
		}
		return nil, err
	}
	return rc, nil
}

// GetTranscodedLength returns the byte length of the output for p, or 0
// when it is not the most recent entry or has not been produced yet.
func (c *Cache) GetTranscodedLength(p Parameters) int64 {
	c.mu.Lock()
	e := c.last
	c.mu.Unlock()

	if e == nil || e.params != p || !e.ready.Load() {
		return 0
	}
	return e.length.Load()
}

// Len returns the number of entries held, counting the most recent one.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.recent.Len()
	if c.last != nil && !c.recent.Contains(c.last.params) {
		n++
	}
	return n
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	c.recent.Purge()
}

// entry returns the entry for p, creating it on a miss, and makes it the
// most recent one.
func (c *Cache) entry(p Parameters) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && c.last.params == p {
		metrics.TranscodeCacheRequests.WithLabelValues("hit").Inc()
		return c.last
	}
	if e, ok := c.recent.Get(p); ok {
		metrics.TranscodeCacheRequests.WithLabelValues("hit").Inc()
		c.last = e
		return e
	}

	metrics.TranscodeCacheRequests.WithLabelValues("miss").Inc()
	e := &cacheEntry{params: p}
	c.last = e
	c.recent.Add(p, e)
	return e
}

// forget removes a failed entry so the next request starts over.
func (c *Cache) forget(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == e {
		c.last = nil
	}
	if cur, ok := c.recent.Peek(e.params); ok && cur == e {
		c.recent.Remove(e.params)
	}
}

// cacheEntry buffers the complete output for one set of parameters. The
// source is run on first use, by whichever reader gets there first; the
// others wait for it. If that reader's context ends mid-run the entry is
// left unmaterialized and the next waiter runs the source itself.
type cacheEntry struct {
	params Parameters

	mu   sync.Mutex
	data []byte
	err  error

	ready  atomic.Bool
	length atomic.Int64
}

func (e *cacheEntry) open(ctx context.Context, source Source) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready.Load() && e.err == nil {
		if err := e.materialize(ctx, source); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.err = err
			metrics.TranscodeCacheErrors.Inc()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (e *cacheEntry) materialize(ctx context.Context, source Source) error {
	rc, err := source.TranscodedStream(ctx, e.params)
	if err != nil {
		return fmt.Errorf("transcode %s: %w", e.params.Track.Path, err)
	}

	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	if cerr := rc.Close(); cerr != nil {
		logging.Warn("Failed to close transcoder output for %s: %v", e.params.Track.Path, cerr)
	}
	if err != nil {
		return fmt.Errorf("transcode %s: %w", e.params.Track.Path, err)
	}

	e.data = buf.Bytes()
	e.length.Store(int64(len(e.data)))
	e.ready.Store(true)
	metrics.TranscodeCacheMaterializedBytes.Add(float64(len(e.data)))
	logging.Debug("Transcode cache buffered %d bytes for %s", len(e.data), e.params)
	return nil
}
