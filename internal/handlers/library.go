package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-streamer/internal/database"
	"media-streamer/internal/logging"
	"media-streamer/internal/media"
	"media-streamer/internal/transcoder"
)

// maxRandomCount bounds the random endpoint.
const maxRandomCount = 500

func trackIDVar(r *http.Request) (media.TrackID, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["trackId"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return media.TrackID(id), true
}

// ListFolder returns the tracks and subfolders of a library folder.
// GET /api/library/folders?path=
func (h *Handlers) ListFolder(w http.ResponseWriter, r *http.Request) {
	listing, err := h.db.ListFolder(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		if errors.Is(err, database.ErrFolderNotFound) {
			writeJSONError(w, "Folder not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to list folder: %v", err)
		writeJSONError(w, "Failed to list folder", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, listing)
}

// GetTrack returns one indexed track.
// GET /api/library/tracks/{trackId}
func (h *Handlers) GetTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := trackIDVar(r)
	if !ok {
		writeJSONError(w, "Invalid track ID", http.StatusBadRequest)
		return
	}
	track, err := h.db.GetTrack(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTrackNotFound) {
			writeJSONError(w, "Track not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to get track %d: %v", id, err)
		writeJSONError(w, "Failed to get track", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, track)
}

// TranscodedLengthResponse reports the expected size of a track's stream.
type TranscodedLengthResponse struct {
	TrackID media.TrackID `json:"trackId"`
	Kind    string        `json:"kind"`
	Format  string        `json:"format"`
	Length  int64         `json:"length"`
	Exact   bool          `json:"exact"`
}

// GetTranscodedLength reports how long the stream for a track would be
// with the given parameters. Only completed transcodes have an exact
// length; otherwise the source size is returned.
// GET /api/library/tracks/{trackId}/length?maxBitRate=&format=
func (h *Handlers) GetTranscodedLength(w http.ResponseWriter, r *http.Request) {
	id, ok := trackIDVar(r)
	if !ok {
		writeJSONError(w, "Invalid track ID", http.StatusBadRequest)
		return
	}
	maxBitRate, err := queryInt(r, "maxBitRate", 0)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	track, err := h.db.GetTrack(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTrackNotFound) {
			writeJSONError(w, "Track not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to get track", http.StatusInternalServerError)
		return
	}

	params := h.transcoder.Parameters(track, transcoder.Profile{}, maxBitRate, r.URL.Query().Get("format"), transcoder.VideoSettings{})
	resp := TranscodedLengthResponse{
		TrackID: id,
		Kind:    params.Kind(),
		Format:  params.Format,
		Length:  track.Size,
		Exact:   !params.NeedsProcessing(),
	}
	if n := h.cache.GetTranscodedLength(params); n > 0 {
		resp.Length = n
		resp.Exact = true
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

// RandomTracks returns random tracks matching the query filters.
// GET /api/library/random?count=&folder=&artist=&format=&mediaType=
func (h *Handlers) RandomTracks(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", h.randomBatchSize)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	criteria := media.RandomSearchCriteria{
		Count:     min(count, maxRandomCount),
		Folder:    q.Get("folder"),
		Artist:    q.Get("artist"),
		Format:    q.Get("format"),
		MediaType: media.MediaType(q.Get("mediaType")),
	}

	tracks, err := h.db.RandomTracks(r.Context(), criteria)
	if err != nil {
		logging.Error("Failed to pick random tracks: %v", err)
		writeJSONError(w, "Failed to pick random tracks", http.StatusInternalServerError)
		return
	}
	if tracks == nil {
		tracks = []media.Track{}
	}
	writeJSONStatus(w, http.StatusOK, tracks)
}

// GetStats returns library statistics.
// GET /api/library/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		logging.Error("Failed to get stats: %v", err)
		writeJSONError(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, stats)
}

// TriggerReindex starts a library re-index in the background.
// POST /api/library/reindex
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsIndexing() {
		writeJSONStatus(w, http.StatusConflict, map[string]string{"status": "already_indexing"})
		return
	}
	h.indexer.TriggerIndex()
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
}
