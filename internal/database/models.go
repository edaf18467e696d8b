package database

import (
	"errors"

	"media-streamer/internal/media"
)

// ErrTrackNotFound is returned when a track lookup matches nothing.
var ErrTrackNotFound = errors.New("track not found")

// DefaultRandomCount is the number of tracks RandomTracks returns when the
// criteria leave Count unset.
const DefaultRandomCount = 20

// FolderListing is the content of one library folder.
type FolderListing struct {
	Path      string        `json:"path"`
	Parent    string        `json:"parent,omitempty"`
	Folders   []string      `json:"folders"`
	Tracks    []media.Track `json:"tracks"`
	PlayCount int           `json:"playCount"`
}
