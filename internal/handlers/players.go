package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"media-streamer/internal/logging"
	"media-streamer/internal/player"
)

// lookupPlayer resolves the {id} route variable, writing a 404 when the
// player does not exist.
func (h *Handlers) lookupPlayer(w http.ResponseWriter, r *http.Request) (*player.Player, bool) {
	id := mux.Vars(r)["id"]
	p, err := h.players.Get(id)
	if err != nil {
		if errors.Is(err, player.ErrPlayerNotFound) {
			writeJSONError(w, "Player not found", http.StatusNotFound)
		} else {
			writeJSONError(w, "Failed to look up player", http.StatusInternalServerError)
		}
		return nil, false
	}
	return p, true
}

// ListPlayers returns every registered player.
// GET /api/players
func (h *Handlers) ListPlayers(w http.ResponseWriter, _ *http.Request) {
	infos := lo.Map(h.players.List(), func(p *player.Player, _ int) player.Info {
		return p.Info()
	})
	writeJSONStatus(w, http.StatusOK, infos)
}

// CreatePlayer registers a new player. Unset bit rate and format fall
// back to the server defaults.
// POST /api/players
func (h *Handlers) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var settings player.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeJSONError(w, "Invalid player settings", http.StatusBadRequest)
		return
	}
	if settings.MaxBitRate == 0 {
		settings.MaxBitRate = h.defaultMaxBitRate
	}
	if settings.PreferredFormat == "" {
		settings.PreferredFormat = h.defaultFormat
	}

	p := h.players.Create(settings)
	logging.Info("Created player %s (%q for %q)", p.ID(), p.Settings().Name, p.Settings().Username)
	writeJSONStatus(w, http.StatusCreated, p.Info())
}

// GetPlayer returns one player.
// GET /api/players/{id}
func (h *Handlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, p.Info())
}

// UpdatePlayer replaces a player's settings.
// PUT /api/players/{id}
func (h *Handlers) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}

	settings := p.Settings()
	if err := decodeJSON(r, &settings); err != nil {
		writeJSONError(w, "Invalid player settings", http.StatusBadRequest)
		return
	}
	p.SetSettings(settings)
	writeJSONStatus(w, http.StatusOK, p.Info())
}

// DeletePlayer removes a player and ends any stream attached to it.
// DELETE /api/players/{id}
func (h *Handlers) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.players.Remove(id); err != nil {
		writeJSONError(w, "Player not found", http.StatusNotFound)
		return
	}
	logging.Info("Removed player %s", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetTransferStatus reports what a player's stream is doing.
// GET /api/players/{id}/status
func (h *Handlers) GetTransferStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, p.Status().Snapshot())
}
