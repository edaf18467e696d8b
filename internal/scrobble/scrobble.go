package scrobble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 10 * time.Second

	listenTypePlayingNow = "playing_now"
	listenTypeSingle     = "single"

	submitPath = "/1/submit-listens"
)

// Config configures a Submitter.
type Config struct {
	// URL is the service root, e.g. https://api.listenbrainz.org.
	// Empty disables submission.
	URL       string
	Token     string
	QueueSize int
	Timeout   time.Duration
	// Client identifies this server in submitted listens.
	Client string
}

type event struct {
	track      media.Track
	username   string
	submission bool
	at         time.Time
}

type trackMetadata struct {
	ArtistName     string         `json:"artist_name"`
	TrackName      string         `json:"track_name"`
	ReleaseName    string         `json:"release_name,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

type listen struct {
	ListenedAt    int64         `json:"listened_at,omitempty"`
	TrackMetadata trackMetadata `json:"track_metadata"`
}

type submission struct {
	ListenType string   `json:"listen_type"`
	Payload    []listen `json:"payload"`
}

// Submitter queues scrobbles and posts them in the background.
type Submitter struct {
	cfg    Config
	client *resty.Client

	events   chan event
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Submitter. Call Start to begin posting.
func New(cfg Config) *Submitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == "" {
		cfg.Client = "media-streamer"
	}

	s := &Submitter{
		cfg:    cfg,
		events: make(chan event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	if cfg.URL != "" {
		s.client = resty.New().
			SetBaseURL(cfg.URL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json")
		if cfg.Token != "" {
			s.client.SetHeader("Authorization", "Token "+cfg.Token)
		}
	}
	return s
}

// Enabled reports whether events are posted to a remote service.
func (s *Submitter) Enabled() bool {
	return s.client != nil
}

// Start launches the background worker.
func (s *Submitter) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop posts what is already queued and stops the worker.
func (s *Submitter) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// RegisterScrobble queues a play event. submission is false when the track
// starts playing and true when it stops. It never blocks.
func (s *Submitter) RegisterScrobble(track media.Track, username string, submission bool) {
	if track.IsVideo() {
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	ev := event{track: track, username: username, submission: submission, at: time.Now()}
	select {
	case s.events <- ev:
	default:
		metrics.ScrobbleQueueDropped.Inc()
		logging.Warn("Scrobble queue full, dropping %s for %s", track.Path, username)
	}
}

func (s *Submitter) run() {
	defer s.wg.Done()

	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					s.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Submitter) handle(ev event) {
	listenType := listenTypePlayingNow
	if ev.submission {
		listenType = listenTypeSingle
	}

	if !s.Enabled() {
		logging.Debug("Scrobble %s for %s: %s", listenType, ev.username, ev.track.Path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	status := "success"
	if err := s.submit(ctx, listenType, ev); err != nil {
		status = "error"
		logging.Warn("Scrobble %s for %s failed: %v", listenType, ev.username, err)
	}
	metrics.ScrobbleSubmissionsTotal.WithLabelValues(listenType, status).Inc()
}

func (s *Submitter) submit(ctx context.Context, listenType string, ev event) error {
	l := listen{TrackMetadata: s.metadata(ev)}
	if listenType == listenTypeSingle {
		l.ListenedAt = ev.at.Unix()
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(submission{ListenType: listenType, Payload: []listen{l}}).
		Post(submitPath)
	if err != nil {
		return fmt.Errorf("failed to submit listen: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}
	return nil
}

func (s *Submitter) metadata(ev event) trackMetadata {
	t := ev.track
	artist := t.Artist
	if artist == "" {
		artist = "Unknown Artist"
	}

	info := map[string]any{
		"submission_client": s.cfg.Client,
		"media_player_user": ev.username,
	}
	if t.TrackNumber > 0 {
		info["tracknumber"] = t.TrackNumber
	}
	if t.DurationSeconds > 0 {
		info["duration"] = t.DurationSeconds
	}

	return trackMetadata{
		ArtistName:     artist,
		TrackName:      t.Title,
		ReleaseName:    t.Album,
		AdditionalInfo: info,
	}
}
