package transcoder

import (
	"fmt"
	"strings"

	"media-streamer/internal/media"
)

// defaultBitRate is used when a track must be re-encoded and neither the
// request nor the player names a bit rate.
const defaultBitRate = 192

// compatibleContainers are the video containers players can take as-is.
var compatibleContainers = map[string]bool{
	"mp4":  true,
	"webm": true,
	"ogg":  true,
}

// videoOutputFormats are the formats buildVideoArgs can produce. Other
// preferred formats are audio formats and do not apply to video tracks.
var videoOutputFormats = map[string]bool{
	"mp4":  true,
	"webm": true,
}

// VideoSettings are optional video-specific adjustments. The zero value
// means "no adjustment".
type VideoSettings struct {
	Width      int `json:"width,omitempty"`
	Height     int `json:"height,omitempty"`
	TimeOffset int `json:"timeOffset,omitempty"` // seconds
	Duration   int `json:"duration,omitempty"`   // seconds, 0 = to the end
}

// IsZero reports whether no video adjustment is requested.
func (v VideoSettings) IsZero() bool {
	return v == VideoSettings{}
}

// Profile describes what a player accepts. The zero value accepts any
// source format at any bit rate.
type Profile struct {
	MaxBitRate      int    `json:"maxBitRate,omitempty"`
	PreferredFormat string `json:"preferredFormat,omitempty"`
}

// Parameters fully describe one transcoder output. Two Parameters values
// are equal exactly when they would produce the same bytes, so they are
// used directly as cache keys.
type Parameters struct {
	Track      media.Track
	Format     string // output format
	MaxBitRate int    // kbps, 0 = unlimited
	Video      VideoSettings
	Transcode  bool // output format differs from the source
	Downsample bool // same format, re-encoded at MaxBitRate
}

// NeedsProcessing reports whether ffmpeg has to run for these parameters.
func (p Parameters) NeedsProcessing() bool {
	return p.Transcode || p.Downsample
}

// Kind names the work needed: "transcode", "downsample" or "passthrough".
func (p Parameters) Kind() string {
	switch {
	case p.Transcode:
		return "transcode"
	case p.Downsample:
		return "downsample"
	default:
		return "passthrough"
	}
}

// MimeType returns the content type of the output.
func (p Parameters) MimeType() string {
	return media.GetMimeType(p.Format)
}

func (p Parameters) String() string {
	return fmt.Sprintf("%s [%s %s %dkbps]", p.Track.Path, p.Kind(), p.Format, p.MaxBitRate)
}

// Parameters derives the output parameters for playing track on a player
// with the given profile. maxBitRate and preferredFormat come from the
// request and override the profile when set; a request bit rate can only
// lower the player's limit.
func (t *Transcoder) Parameters(track media.Track, profile Profile, maxBitRate int, preferredFormat string, video VideoSettings) Parameters {
	p := Parameters{
		Track:      track,
		Format:     track.Format,
		MaxBitRate: effectiveBitRate(maxBitRate, profile.MaxBitRate),
	}

	target := strings.ToLower(preferredFormat)
	if target == "" {
		target = strings.ToLower(profile.PreferredFormat)
	}
	if target == "raw" {
		target = ""
		p.MaxBitRate = 0
	}

	if track.IsVideo() {
		p.Video = video
		switch {
		case videoOutputFormats[target] && target != track.Format:
			p.Format = target
			p.Transcode = true
		case !compatibleContainers[track.Format] || !video.IsZero():
			p.Format = "mp4"
			p.Transcode = true
		}
		return p
	}

	switch {
	case target != "" && target != track.Format:
		p.Format = target
		p.Transcode = true
		if p.MaxBitRate == 0 {
			p.MaxBitRate = defaultBitRate
		}
	case p.MaxBitRate > 0 && track.BitRate > p.MaxBitRate:
		p.Downsample = true
	}
	return p
}

// effectiveBitRate picks the lower non-zero limit.
func effectiveBitRate(requested, player int) int {
	switch {
	case requested <= 0:
		return max(player, 0)
	case player <= 0:
		return requested
	default:
		return min(requested, player)
	}
}
