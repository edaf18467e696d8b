package playlist

import (
	"fmt"
	"strings"
)

// SortOrder names the key used by Queue.Sort.
type SortOrder string

const (
	// SortByTrack orders entries by track number; unknown numbers come first.
	SortByTrack SortOrder = "track"
	// SortByArtist orders entries by artist name.
	SortByArtist SortOrder = "artist"
	// SortByAlbum orders entries by album name.
	SortByAlbum SortOrder = "album"
)

// ParseSortOrder converts a key name to a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case SortByTrack, SortByArtist, SortByAlbum:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}
