package media

import (
	"path"
	"strings"
)

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true, ".oga": true,
	".opus": true, ".m4a": true, ".aac": true, ".wav": true,
	".wma": true, ".ape": true, ".wv": true, ".aiff": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
}

// PlaylistExtensions maps file extensions to whether they are supported playlist formats.
var PlaylistExtensions = map[string]bool{
	".wpl": true,
}

// mimeTypes is keyed by format name (extension without the dot).
var mimeTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/ogg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"wav":  "audio/wav",
	"wma":  "audio/x-ms-wma",
	"ape":  "audio/x-ape",
	"wv":   "audio/x-wavpack",
	"aiff": "audio/aiff",

	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"flv":  "video/x-flv",
	"webm": "video/webm",
	"m4v":  "video/x-m4v",
	"mpeg": "video/mpeg",
	"mpg":  "video/mpeg",
	"3gp":  "video/3gpp",
	"ts":   "video/mp2t",

	"wpl": "application/vnd.ms-wpl",
}

// FormatOf returns the lower-case extension of name without the leading dot.
func FormatOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// GetMediaType returns the MediaType for a given file extension.
// The extension should include the leading dot (e.g., ".mp3"); case is ignored.
func GetMediaType(ext string) MediaType {
	ext = strings.ToLower(ext)
	switch {
	case AudioExtensions[ext]:
		return MediaTypeMusic
	case VideoExtensions[ext]:
		return MediaTypeVideo
	default:
		return MediaTypeOther
	}
}

// IsStreamable returns true if the extension represents a file the streamer can play.
func IsStreamable(ext string) bool {
	return GetMediaType(ext) != MediaTypeOther
}

// IsPlaylist returns true if the extension represents a supported playlist file.
func IsPlaylist(ext string) bool {
	return PlaylistExtensions[strings.ToLower(ext)]
}

// GetMimeType returns the MIME type for a format name such as "mp3".
// Returns "application/octet-stream" if the format is not recognized.
func GetMimeType(format string) string {
	if mime, ok := mimeTypes[strings.ToLower(format)]; ok {
		return mime
	}
	return "application/octet-stream"
}
