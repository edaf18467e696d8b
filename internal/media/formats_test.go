package media

import (
	"strings"
	"testing"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"song.mp3", "mp3"},
		{"Album/01 - Track.FLAC", "flac"},
		{"dir.with.dots/clip.webm", "webm"},
		{"noext", ""},
		{".hidden", "hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatOf(tt.name); got != tt.expected {
				t.Errorf("FormatOf(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestIsStreamable(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".mp3", true},
		{".OPUS", true},
		{".mkv", true},
		{".wpl", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsStreamable(tt.ext); got != tt.expected {
				t.Errorf("IsStreamable(%q) = %v, want %v", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestIsPlaylist(t *testing.T) {
	if !IsPlaylist(".WPL") {
		t.Error("Expected .WPL to be a playlist")
	}
	if IsPlaylist(".m3u") {
		t.Error("Expected .m3u not to be a playlist")
	}
}

func TestExtensionMapsNoOverlap(t *testing.T) {
	for ext := range AudioExtensions {
		if VideoExtensions[ext] {
			t.Errorf("Extension %s is both audio and video", ext)
		}
		if PlaylistExtensions[ext] {
			t.Errorf("Extension %s is both audio and playlist", ext)
		}
	}
	for ext := range VideoExtensions {
		if PlaylistExtensions[ext] {
			t.Errorf("Extension %s is both video and playlist", ext)
		}
	}
}

func TestMimeTypesCoverExtensions(t *testing.T) {
	maps := []map[string]bool{AudioExtensions, VideoExtensions, PlaylistExtensions}
	for _, m := range maps {
		for ext := range m {
			format := strings.TrimPrefix(ext, ".")
			mime, ok := mimeTypes[format]
			if !ok {
				t.Errorf("Format %s has no MIME type", format)
				continue
			}
			if !strings.Contains(mime, "/") {
				t.Errorf("MIME type %q for %s is malformed", mime, format)
			}
		}
	}
}

func TestMimeTypeMatchesMediaType(t *testing.T) {
	for ext := range AudioExtensions {
		if mime := GetMimeType(strings.TrimPrefix(ext, ".")); !strings.HasPrefix(mime, "audio/") {
			t.Errorf("Expected audio MIME type for %s, got %s", ext, mime)
		}
	}
	for ext := range VideoExtensions {
		if mime := GetMimeType(strings.TrimPrefix(ext, ".")); !strings.HasPrefix(mime, "video/") {
			t.Errorf("Expected video MIME type for %s, got %s", ext, mime)
		}
	}
}

func BenchmarkGetMediaType(b *testing.B) {
	exts := []string{".mp3", ".mkv", ".txt", ".FLAC"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetMediaType(exts[i%len(exts)])
	}
}
