package player

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-streamer/internal/metrics"
	"media-streamer/internal/playlist"
	"media-streamer/internal/streaming"
	"media-streamer/internal/transcoder"
)

// ErrPlayerNotFound is returned for unknown player IDs.
var ErrPlayerNotFound = errors.New("player not found")

// Settings are the client-controlled properties of a player.
type Settings struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	ClientID string `json:"clientId,omitempty"`
	// MaxBitRate caps the stream in kbps; 0 is unlimited.
	MaxBitRate      int    `json:"maxBitRate,omitempty"`
	PreferredFormat string `json:"preferredFormat,omitempty"`
	ScrobbleExempt  bool   `json:"scrobbleExempt,omitempty"`
}

// StreamOptions are per-request stream parameters.
type StreamOptions struct {
	MaxBitRate int
	Format     string
	Video      transcoder.VideoSettings
}

// Player is one streaming client.
type Player struct {
	id      string
	created time.Time
	queue   *playlist.Queue
	status  *streaming.TransferStatus

	mu       sync.RWMutex
	settings Settings
}

// Info is a JSON snapshot of a player.
type Info struct {
	ID       string                     `json:"id"`
	Created  time.Time                  `json:"created"`
	Settings Settings                   `json:"settings"`
	Queue    playlist.State             `json:"queue"`
	Transfer streaming.TransferSnapshot `json:"transfer"`
}

func newPlayer(id string, settings Settings) *Player {
	q := playlist.NewQueue()
	q.SetName(settings.Name)
	return &Player{
		id:       id,
		created:  time.Now(),
		queue:    q,
		status:   streaming.NewTransferStatus(id),
		settings: normalize(settings),
	}
}

func normalize(s Settings) Settings {
	s.Name = strings.TrimSpace(s.Name)
	s.PreferredFormat = strings.ToLower(strings.TrimSpace(s.PreferredFormat))
	s.MaxBitRate = max(s.MaxBitRate, 0)
	return s
}

// ID returns the player's identifier.
func (p *Player) ID() string { return p.id }

// Queue returns the player's playback queue.
func (p *Player) Queue() *playlist.Queue { return p.queue }

// Status returns the transfer status of the player's stream.
func (p *Player) Status() *streaming.TransferStatus { return p.status }

// Settings returns a copy of the player's settings.
func (p *Player) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// SetSettings replaces the player's settings. They apply to the next
// stream request.
func (p *Player) SetSettings(s Settings) {
	s = normalize(s)
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
	p.queue.SetName(s.Name)
}

// Session combines the player's settings with a stream request.
func (p *Player) Session(opts StreamOptions) streaming.Session {
	s := p.Settings()
	return streaming.Session{
		PlayerID: p.id,
		Username: s.Username,
		Profile: transcoder.Profile{
			MaxBitRate:      s.MaxBitRate,
			PreferredFormat: s.PreferredFormat,
		},
		MaxBitRate:      opts.MaxBitRate,
		PreferredFormat: strings.ToLower(opts.Format),
		Video:           opts.Video,
		ScrobbleExempt:  s.ScrobbleExempt,
	}
}

// Info returns a snapshot of the player.
func (p *Player) Info() Info {
	return Info{
		ID:       p.id,
		Created:  p.created,
		Settings: p.Settings(),
		Queue:    p.queue.State(),
		Transfer: p.status.Snapshot(),
	}
}

// Registry holds the active players.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

// Create registers a new player with a fresh ID.
func (r *Registry) Create(settings Settings) *Player {
	p := newPlayer(uuid.NewString(), settings)

	r.mu.Lock()
	r.players[p.id] = p
	n := len(r.players)
	r.mu.Unlock()

	metrics.PlayersTotal.Set(float64(n))
	return p
}

// Get returns the player with the given ID.
func (r *Registry) Get(id string) (*Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

// List returns all players, oldest first.
func (r *Registry) List() []*Player {
	r.mu.RLock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(players, func(a, b *Player) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return players
}

// Remove deletes a player. Its queue is cleared and stopped so a stream
// still attached to it ends.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	p, ok := r.players[id]
	delete(r.players, id)
	n := len(r.players)
	r.mu.Unlock()

	if !ok {
		return ErrPlayerNotFound
	}
	p.queue.Clear()
	p.queue.SetStatus(playlist.StatusStopped)
	metrics.PlayersTotal.Set(float64(n))
	return nil
}

// Count returns the number of players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
