package streaming

import (
	"sync"
	"sync/atomic"
	"time"

	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
)

// TransferStatus tracks what a player's stream is currently delivering.
// It is shared between the stream handler and the control API.
type TransferStatus struct {
	playerID string
	bytes    atomic.Int64
	active   atomic.Int32

	mu       sync.RWMutex
	track    media.Track
	hasTrack bool
	started  time.Time
}

// TransferSnapshot is a point-in-time copy of a TransferStatus.
type TransferSnapshot struct {
	PlayerID         string       `json:"playerId"`
	Active           bool         `json:"active"`
	BytesTransferred int64        `json:"bytesTransferred"`
	Track            *media.Track `json:"track,omitempty"`
	TrackStarted     *time.Time   `json:"trackStarted,omitempty"`
}

// NewTransferStatus creates the status for a player.
func NewTransferStatus(playerID string) *TransferStatus {
	return &TransferStatus{playerID: playerID}
}

// AddBytes records n bytes handed to the network layer.
func (s *TransferStatus) AddBytes(n int) {
	s.bytes.Add(int64(n))
	metrics.StreamBytesTotal.Add(float64(n))
}

// BytesTransferred returns the total bytes delivered for this player.
func (s *TransferStatus) BytesTransferred() int64 {
	return s.bytes.Load()
}

// SetTrack records the track now being delivered.
func (s *TransferStatus) SetTrack(t media.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t
	s.hasTrack = true
	s.started = time.Now()
}

// ClearTrack records that no track is being delivered.
func (s *TransferStatus) ClearTrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = media.Track{}
	s.hasTrack = false
}

// CurrentTrack returns the track being delivered, if any.
func (s *TransferStatus) CurrentTrack() (media.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track, s.hasTrack
}

// Begin marks the start of a stream. Streams may overlap when a player
// reconnects before the old connection is noticed as gone.
func (s *TransferStatus) Begin() {
	s.active.Add(1)
	metrics.StreamsActive.Inc()
}

// End marks the end of a stream started with Begin.
func (s *TransferStatus) End() {
	if s.active.Add(-1) == 0 {
		s.ClearTrack()
	}
	metrics.StreamsActive.Dec()
}

// IsActive reports whether a stream is being served.
func (s *TransferStatus) IsActive() bool {
	return s.active.Load() > 0
}

// Snapshot returns a copy of the status.
func (s *TransferStatus) Snapshot() TransferSnapshot {
	snap := TransferSnapshot{
		PlayerID:         s.playerID,
		Active:           s.IsActive(),
		BytesTransferred: s.BytesTransferred(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasTrack {
		t := s.track
		started := s.started
		snap.Track = &t
		snap.TrackStarted = &started
	}
	return snap
}
