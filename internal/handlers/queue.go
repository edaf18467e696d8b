package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"media-streamer/internal/database"
	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/metrics"
	"media-streamer/internal/playlist"
)

// QueueRequest is the body of a queue action. Each action reads only the
// fields it needs.
type QueueRequest struct {
	Mode     string                      `json:"mode,omitempty"`
	IDs      []media.TrackID             `json:"ids,omitempty"`
	Paths    []string                    `json:"paths,omitempty"`
	Index    *int                        `json:"index,omitempty"`
	Order    string                      `json:"order,omitempty"`
	Enabled  *bool                       `json:"enabled,omitempty"`
	Criteria *media.RandomSearchCriteria `json:"criteria,omitempty"`
	Playlist string                      `json:"playlist,omitempty"`
}

// requestError carries the status code a failed action should produce.
type requestError struct {
	code int
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

type queueAction func(h *Handlers, r *http.Request, q *playlist.Queue, req QueueRequest) error

var queueActions = map[string]queueAction{
	"add":      addTracks,
	"insert":   insertTracks,
	"remove":   removeTrack,
	"up":       withIndex((*playlist.Queue).MoveUp),
	"down":     withIndex((*playlist.Queue).MoveDown),
	"skip":     skipTo,
	"sort":     sortQueue,
	"shuffle":  simple((*playlist.Queue).Shuffle),
	"reverse":  simple((*playlist.Queue).Reverse),
	"clear":    simple((*playlist.Queue).Clear),
	"undo":     simple((*playlist.Queue).Undo),
	"next":     simple((*playlist.Queue).Next),
	"start":    setStatus(playlist.StatusPlaying),
	"stop":     setStatus(playlist.StatusStopped),
	"repeat":   setRepeat,
	"random":   setRandom,
	"playlist": loadPlaylist,
}

// GetQueue returns the state of a player's queue.
// GET /api/players/{id}/queue
func (h *Handlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, p.Queue().State())
}

// QueueAction applies one control action to a player's queue and returns
// the resulting state.
// POST /api/players/{id}/queue/{action}
func (h *Handlers) QueueAction(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["action"]
	action, known := queueActions[name]
	if !known {
		metrics.QueueOperationsTotal.WithLabelValues("unknown", "error").Inc()
		writeJSONError(w, "Unknown queue action", http.StatusBadRequest)
		return
	}

	p, ok := h.lookupPlayer(w, r)
	if !ok {
		return
	}

	var req QueueRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.QueueOperationsTotal.WithLabelValues(name, "error").Inc()
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := action(h, r, p.Queue(), req); err != nil {
		metrics.QueueOperationsTotal.WithLabelValues(name, "error").Inc()
		var re *requestError
		if errors.As(err, &re) {
			writeJSONError(w, re.msg, re.code)
			return
		}
		logging.Error("Queue action %s failed for player %s: %v", name, p.ID(), err)
		writeJSONError(w, "Queue action failed", http.StatusInternalServerError)
		return
	}

	metrics.QueueOperationsTotal.WithLabelValues(name, "success").Inc()
	logging.Debug("Queue action %s applied to player %s", name, p.ID())
	writeJSONStatus(w, http.StatusOK, p.Queue().State())
}

func simple(fn func(*playlist.Queue)) queueAction {
	return func(_ *Handlers, _ *http.Request, q *playlist.Queue, _ QueueRequest) error {
		fn(q)
		return nil
	}
}

func withIndex(fn func(*playlist.Queue, int)) queueAction {
	return func(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
		if req.Index == nil {
			return badRequest("index is required")
		}
		fn(q, *req.Index)
		return nil
	}
}

func setStatus(s playlist.Status) queueAction {
	return func(_ *Handlers, _ *http.Request, q *playlist.Queue, _ QueueRequest) error {
		q.SetStatus(s)
		return nil
	}
}

func addTracks(h *Handlers, r *http.Request, q *playlist.Queue, req QueueRequest) error {
	mode, err := playlist.ParseInsertMode(req.Mode)
	if err != nil {
		return badRequest("%v", err)
	}
	tracks, err := h.resolveTracks(r, req)
	if err != nil {
		return err
	}
	q.AddFiles(mode, tracks...)
	return nil
}

func insertTracks(h *Handlers, r *http.Request, q *playlist.Queue, req QueueRequest) error {
	if req.Index == nil {
		return badRequest("index is required")
	}
	tracks, err := h.resolveTracks(r, req)
	if err != nil {
		return err
	}
	q.AddFilesAt(*req.Index, tracks...)
	return nil
}

func removeTrack(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
	if req.Index == nil {
		return badRequest("index is required")
	}
	if !q.RemoveAt(*req.Index) {
		return badRequest("index %d out of range", *req.Index)
	}
	return nil
}

func skipTo(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
	if req.Index == nil {
		return badRequest("index is required")
	}
	if *req.Index < 0 || *req.Index >= q.Size() {
		return badRequest("index %d out of range", *req.Index)
	}
	q.SetIndex(*req.Index)
	return nil
}

func sortQueue(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
	order, err := playlist.ParseSortOrder(req.Order)
	if err != nil {
		return badRequest("%v", err)
	}
	q.Sort(order)
	return nil
}

func setRepeat(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
	enabled := !q.IsRepeatEnabled()
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	q.SetRepeatEnabled(enabled)
	return nil
}

// setRandom turns auto-random mode on with the given criteria, or off when
// enabled is false or no criteria are sent.
func setRandom(_ *Handlers, _ *http.Request, q *playlist.Queue, req QueueRequest) error {
	if req.Enabled != nil && !*req.Enabled {
		q.SetRandomSearchCriteria(nil)
		return nil
	}
	if req.Criteria == nil {
		if req.Enabled == nil {
			q.SetRandomSearchCriteria(nil)
			return nil
		}
		req.Criteria = &media.RandomSearchCriteria{}
	}
	if req.Criteria.Count < 0 {
		return badRequest("count must not be negative")
	}
	q.SetRandomSearchCriteria(req.Criteria)
	return nil
}

// loadPlaylist queues the entries of a WPL playlist that exist on disk and
// in the library.
func loadPlaylist(h *Handlers, r *http.Request, q *playlist.Queue, req QueueRequest) error {
	if req.Playlist == "" {
		return badRequest("playlist is required")
	}
	mode, err := playlist.ParseInsertMode(req.Mode)
	if err != nil {
		return badRequest("%v", err)
	}

	f, err := playlist.ParseWPL(h.mediaDir, req.Playlist)
	if err != nil {
		if errors.Is(err, playlist.ErrOutsideMediaDir) {
			return badRequest("playlist is outside the media directory")
		}
		return &requestError{code: http.StatusNotFound, msg: "Playlist could not be read"}
	}

	tracks := make([]media.Track, 0, len(f.Items))
	for _, path := range f.Existing() {
		t, err := h.db.GetTrackByPath(r.Context(), path)
		if err != nil {
			if errors.Is(err, database.ErrTrackNotFound) {
				logging.Debug("Playlist %s entry %s is not indexed", f.Name, path)
				continue
			}
			return err
		}
		tracks = append(tracks, t)
	}
	logging.Info("Loaded %d of %d entries from playlist %s", len(tracks), len(f.Items), f.Name)

	q.AddFiles(mode, tracks...)
	return nil
}

// resolveTracks looks up the tracks named by ids and paths, ids first.
func (h *Handlers) resolveTracks(r *http.Request, req QueueRequest) ([]media.Track, error) {
	if len(req.IDs) == 0 && len(req.Paths) == 0 {
		return nil, badRequest("ids or paths are required")
	}

	tracks := make([]media.Track, 0, len(req.IDs)+len(req.Paths))
	for _, id := range req.IDs {
		t, err := h.db.GetTrack(r.Context(), id)
		if err != nil {
			return nil, trackLookupError(err, fmt.Sprint(id))
		}
		tracks = append(tracks, t)
	}
	for _, path := range req.Paths {
		t, err := h.db.GetTrackByPath(r.Context(), path)
		if err != nil {
			return nil, trackLookupError(err, path)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func trackLookupError(err error, ref string) error {
	if errors.Is(err, database.ErrTrackNotFound) {
		return &requestError{code: http.StatusNotFound, msg: "Track not found: " + ref}
	}
	return err
}
