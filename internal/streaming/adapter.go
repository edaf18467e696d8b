package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
	"media-streamer/internal/playlist"
	"media-streamer/internal/transcoder"
)

// DefaultRandomBatchSize is how many tracks an auto-random refill asks for
// when the criteria do not say.
const DefaultRandomBatchSize = 20

// ParameterResolver derives transcoder parameters for a track.
type ParameterResolver interface {
	Parameters(track media.Track, profile transcoder.Profile, maxBitRate int, preferredFormat string, video transcoder.VideoSettings) transcoder.Parameters
}

// StreamSource opens the transcoded output for a set of parameters.
type StreamSource interface {
	GetStream(ctx context.Context, p transcoder.Parameters) (io.ReadCloser, error)
}

// RandomSource picks tracks for auto-random mode.
type RandomSource interface {
	RandomTracks(ctx context.Context, criteria media.RandomSearchCriteria) ([]media.Track, error)
}

// PlayCounter records that a folder was played.
type PlayCounter interface {
	IncrementPlayCount(ctx context.Context, folder string) error
}

// Scrobbler records plays with an external service. submission is false
// when a track starts and true when it stops.
type Scrobbler interface {
	RegisterScrobble(track media.Track, username string, submission bool)
}

// Session is what the adapter needs to know about the player it serves.
type Session struct {
	PlayerID        string
	Username        string
	Profile         transcoder.Profile
	MaxBitRate      int
	PreferredFormat string
	Video           transcoder.VideoSettings
	// ScrobbleExempt suppresses both scrobbles for this player. Play
	// counts are still recorded.
	ScrobbleExempt bool
}

// Config wires an Adapter to its collaborators. Queue, Resolver and
// Source are required; the rest may be nil.
type Config struct {
	Session         Session
	Queue           *playlist.Queue
	Resolver        ParameterResolver
	Source          StreamSource
	Random          RandomSource
	PlayCounter     PlayCounter
	Scrobbler       Scrobbler
	Status          *TransferStatus
	RandomBatchSize int
}

// Adapter presents a player's queue as one continuous byte stream. Each
// Read serves bytes from the current track's stream; when that stream
// ends the queue is advanced and the next track opened, so track
// boundaries are invisible to the reader. Reads return io.EOF once the
// queue is stopped or has nothing left to play.
//
// Read and Close must not be called concurrently with each other, but the
// queue may be changed from other goroutines at any time.
type Adapter struct {
	ctx context.Context
	cfg Config

	mu      sync.Mutex
	stream  io.ReadCloser
	current playlist.Entry
	open    bool

	// refilled is the criteria of the auto-random refill already tried
	// for the current exhaustion; nil once a track has been opened.
	refilled *media.RandomSearchCriteria
}

// NewAdapter creates an adapter. ctx bounds the transcoder work started
// on behalf of this stream.
func NewAdapter(ctx context.Context, cfg Config) *Adapter {
	if cfg.Status == nil {
		cfg.Status = NewTransferStatus(cfg.Session.PlayerID)
	}
	if cfg.RandomBatchSize <= 0 {
		cfg.RandomBatchSize = DefaultRandomBatchSize
	}
	return &Adapter{ctx: ctx, cfg: cfg}
}

// Read implements io.Reader.
func (a *Adapter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Every track in a repeating queue may be empty; give up after a
	// full lap without data.
	for empty := 0; ; empty++ {
		if err := a.prepare(); err != nil {
			return 0, err
		}
		if a.stream == nil || a.cfg.Queue.Status() == playlist.StatusStopped {
			return 0, io.EOF
		}

		n, err := a.stream.Read(p)
		if n > 0 {
			a.cfg.Status.AddBytes(n)
			return n, nil
		}
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read %s: %w", a.current.Track.Path, err)
		}

		if empty > a.cfg.Queue.Size() {
			return 0, io.EOF
		}
		a.cfg.Queue.NextIfCurrent(a.current.Handle)
		if cerr := a.closeCurrent(); cerr != nil {
			logging.Warn("Failed to close stream for %s: %v", a.cfg.Session.PlayerID, cerr)
		}
	}
}

// ReadByte implements io.ByteReader.
func (a *Adapter) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := a.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close releases the current track's stream and emits the stop scrobble
// for it. Closing an adapter with no open track does nothing. The adapter
// can be read again after Close; it resumes from the queue's cursor.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeCurrent()
}

// CurrentTrack returns the track whose stream is open.
func (a *Adapter) CurrentTrack() (media.Track, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.Track, a.open
}

// prepare makes the open stream match the queue's current entry.
func (a *Adapter) prepare() error {
	q := a.cfg.Queue

	if _, ok := q.Current(); !ok {
		a.refill()
	}

	entry, ok := q.Current()
	if !ok {
		if err := a.closeCurrent(); err != nil {
			logging.Warn("Failed to close stream for %s: %v", a.cfg.Session.PlayerID, err)
		}
		return nil
	}
	if a.open && entry.Handle == a.current.Handle {
		return nil
	}

	if err := a.closeCurrent(); err != nil {
		logging.Warn("Failed to close stream for %s: %v", a.cfg.Session.PlayerID, err)
	}
	return a.openEntry(entry)
}

// refill repopulates an exhausted queue in auto-random mode. It runs at
// most once per criteria until a track is opened again.
func (a *Adapter) refill() {
	criteria := a.cfg.Queue.RandomSearchCriteria()
	if criteria == nil || a.cfg.Random == nil {
		return
	}
	if a.refilled != nil && *a.refilled == *criteria {
		return
	}
	a.refilled = criteria

	req := *criteria
	if req.Count <= 0 {
		req.Count = a.cfg.RandomBatchSize
	}
	tracks, err := a.cfg.Random.RandomTracks(a.ctx, req)
	if err != nil {
		metrics.StreamRandomRefills.WithLabelValues("error").Inc()
		logging.Warn("Random refill failed for player %s: %v", a.cfg.Session.PlayerID, err)
		return
	}
	if len(tracks) == 0 {
		metrics.StreamRandomRefills.WithLabelValues("empty").Inc()
		logging.Debug("Random refill for player %s found no tracks", a.cfg.Session.PlayerID)
		return
	}

	// Replace rather than append so the exhausted entries are not replayed.
	a.cfg.Queue.AddFiles(playlist.InsertReplace, tracks...)
	metrics.StreamRandomRefills.WithLabelValues("filled").Inc()
	logging.Debug("Random refill added %d tracks for player %s", len(tracks), a.cfg.Session.PlayerID)
}

func (a *Adapter) openEntry(entry playlist.Entry) error {
	s := a.cfg.Session
	params := a.cfg.Resolver.Parameters(entry.Track, s.Profile, s.MaxBitRate, s.PreferredFormat, s.Video)

	rc, err := a.cfg.Source.GetStream(a.ctx, params)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Track.Path, err)
	}

	a.stream = rc
	a.current = entry
	a.open = true
	a.refilled = nil

	a.cfg.Status.SetTrack(entry.Track)
	metrics.StreamTrackChanges.Inc()
	logging.Debug("Player %s now streaming %s", s.PlayerID, params)

	a.trackStarted(entry.Track)
	return nil
}

// trackStarted runs the play accounting hooks. Their failures never
// interrupt playback.
func (a *Adapter) trackStarted(t media.Track) {
	if a.cfg.PlayCounter != nil {
		if err := a.cfg.PlayCounter.IncrementPlayCount(a.ctx, t.Folder); err != nil {
			metrics.AccountingFailures.WithLabelValues("play_count").Inc()
			logging.Warn("Failed to update play count for %s: %v", t.Folder, err)
		}
	}
	if a.cfg.Scrobbler != nil && !a.cfg.Session.ScrobbleExempt {
		a.cfg.Scrobbler.RegisterScrobble(t, a.cfg.Session.Username, false)
	}
}

// closeCurrent closes the open stream, if any. The stop scrobble is sent
// even when closing the stream fails, unless the player is exempt.
func (a *Adapter) closeCurrent() error {
	if !a.open {
		return nil
	}

	t := a.current.Track
	stream := a.stream
	a.stream = nil
	a.current = playlist.Entry{}
	a.open = false

	defer func() {
		if a.cfg.Scrobbler != nil && !a.cfg.Session.ScrobbleExempt {
			a.cfg.Scrobbler.RegisterScrobble(t, a.cfg.Session.Username, true)
		}
	}()
	return stream.Close()
}
