package media

import "testing"

func TestTrackFromPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		title       string
		artist      string
		album       string
		folder      string
		trackNumber int
		format      string
		mediaType   MediaType
	}{
		{
			name:        "artist album numbered",
			path:        "Miles Davis/Kind of Blue/01 - So What.flac",
			title:       "So What",
			artist:      "Miles Davis",
			album:       "Kind of Blue",
			folder:      "Miles Davis/Kind of Blue",
			trackNumber: 1,
			format:      "flac",
			mediaType:   MediaTypeMusic,
		},
		{
			name:        "dot separator",
			path:        "Album/12. Closing.MP3",
			title:       "Closing",
			album:       "Album",
			folder:      "Album",
			trackNumber: 12,
			format:      "mp3",
			mediaType:   MediaTypeMusic,
		},
		{
			name:      "root file without number",
			path:      "intro.ogg",
			title:     "intro",
			format:    "ogg",
			mediaType: MediaTypeMusic,
		},
		{
			name:      "video",
			path:      "Movies/Holiday.mkv",
			title:     "Holiday",
			album:     "Movies",
			folder:    "Movies",
			format:    "mkv",
			mediaType: MediaTypeVideo,
		},
		{
			name:      "zero is not a track number",
			path:      "Album/00 - Hidden.mp3",
			title:     "00 - Hidden",
			album:     "Album",
			folder:    "Album",
			format:    "mp3",
			mediaType: MediaTypeMusic,
		},
		{
			name:        "backslashes normalized",
			path:        `Artist\Album\2 Second.m4a`,
			title:       "Second",
			artist:      "Artist",
			album:       "Album",
			folder:      "Artist/Album",
			trackNumber: 2,
			format:      "m4a",
			mediaType:   MediaTypeMusic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackFromPath(tt.path, 42)
			if got.Title != tt.title {
				t.Errorf("Expected Title=%q, got %q", tt.title, got.Title)
			}
			if got.Artist != tt.artist {
				t.Errorf("Expected Artist=%q, got %q", tt.artist, got.Artist)
			}
			if got.Album != tt.album {
				t.Errorf("Expected Album=%q, got %q", tt.album, got.Album)
			}
			if got.Folder != tt.folder {
				t.Errorf("Expected Folder=%q, got %q", tt.folder, got.Folder)
			}
			if got.TrackNumber != tt.trackNumber {
				t.Errorf("Expected TrackNumber=%d, got %d", tt.trackNumber, got.TrackNumber)
			}
			if got.Format != tt.format {
				t.Errorf("Expected Format=%q, got %q", tt.format, got.Format)
			}
			if got.MediaType != tt.mediaType {
				t.Errorf("Expected MediaType=%q, got %q", tt.mediaType, got.MediaType)
			}
			if got.Size != 42 {
				t.Errorf("Expected Size=42, got %d", got.Size)
			}
		})
	}
}

func TestGetMediaType(t *testing.T) {
	tests := []struct {
		ext      string
		expected MediaType
	}{
		{".mp3", MediaTypeMusic},
		{".FLAC", MediaTypeMusic},
		{".mp4", MediaTypeVideo},
		{".webm", MediaTypeVideo},
		{".wpl", MediaTypeOther},
		{".jpg", MediaTypeOther},
		{"", MediaTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMediaType(tt.ext); got != tt.expected {
				t.Errorf("GetMediaType(%q) = %q, want %q", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType("MP3"); got != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %q", got)
	}
	if got := GetMimeType("xyz"); got != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %q", got)
	}
}

func TestTrackEquality(t *testing.T) {
	a := TrackFromPath("A/B/01 - C.mp3", 10)
	b := TrackFromPath("A/B/01 - C.mp3", 10)
	if a != b {
		t.Error("Expected tracks built from the same path to be equal")
	}
	b.BitRate = 320
	if a == b {
		t.Error("Expected tracks with different bit rates to differ")
	}
}
