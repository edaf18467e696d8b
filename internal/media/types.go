package media

import "time"

// TrackID identifies a track in the library database.
type TrackID int64

// MediaType classifies a track.
type MediaType string

const (
	// MediaTypeMusic is an audio track.
	MediaTypeMusic MediaType = "music"
	// MediaTypeVideo is a video file.
	MediaTypeVideo MediaType = "video"
	// MediaTypeOther is anything the streamer cannot classify.
	MediaTypeOther MediaType = "other"
)

// Track is a single playable file in the media library.
// Path and Folder are relative to the media directory and use forward slashes.
type Track struct {
	ID              TrackID   `json:"id"`
	Path            string    `json:"path"`
	Folder          string    `json:"folder"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist,omitempty"`
	Album           string    `json:"album,omitempty"`
	TrackNumber     int       `json:"trackNumber,omitempty"` // 0 when unknown
	Format          string    `json:"format"`                // lower-case suffix without the dot
	MediaType       MediaType `json:"mediaType"`
	Size            int64     `json:"size"`
	BitRate         int       `json:"bitRate,omitempty"` // kbps, 0 when unknown
	DurationSeconds int       `json:"durationSeconds,omitempty"`
}

// IsVideo reports whether the track is a video file.
func (t Track) IsVideo() bool {
	return t.MediaType == MediaTypeVideo
}

// RandomSearchCriteria selects tracks for auto-random mode.
// Empty fields do not filter.
type RandomSearchCriteria struct {
	Count     int       `json:"count" yaml:"count"`
	Folder    string    `json:"folder,omitempty" yaml:"folder"`
	Artist    string    `json:"artist,omitempty" yaml:"artist"`
	Format    string    `json:"format,omitempty" yaml:"format"`
	MediaType MediaType `json:"mediaType,omitempty" yaml:"mediaType"`
}

// ProbeInfo holds stream properties reported by ffprobe.
type ProbeInfo struct {
	Duration   time.Duration `json:"duration"`
	BitRate    int           `json:"bitRate"` // kbps
	AudioCodec string        `json:"audioCodec,omitempty"`
	VideoCodec string        `json:"videoCodec,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
}

// LibraryStats summarizes the indexed library.
type LibraryStats struct {
	TotalTracks   int       `json:"totalTracks"`
	TotalMusic    int       `json:"totalMusic"`
	TotalVideos   int       `json:"totalVideos"`
	TotalFolders  int       `json:"totalFolders"`
	TotalBytes    int64     `json:"totalBytes"`
	LastIndexed   time.Time `json:"lastIndexed"`
	IndexDuration string    `json:"indexDuration,omitempty"`
}
