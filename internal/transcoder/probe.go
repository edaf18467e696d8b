package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"media-streamer/internal/media"
)

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs ffprobe on a file and reports its duration, bit rate and codecs.
func (t *Transcoder) Probe(ctx context.Context, filePath string) (*media.ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*media.ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &media.ProbeInfo{}
	if secs, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	if bps, err := strconv.Atoi(out.Format.BitRate); err == nil {
		info.BitRate = bps / 1000
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			// Cover art shows up as an mjpeg/png video stream in audio files.
			if info.VideoCodec == "" && s.CodecName != "mjpeg" && s.CodecName != "png" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		}
	}
	return info, nil
}
