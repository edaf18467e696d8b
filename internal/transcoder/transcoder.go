package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"media-streamer/internal/filesystem"
	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
)

var (
	// ErrTranscodingDisabled is returned when a track needs ffmpeg but transcoding is off.
	ErrTranscodingDisabled = errors.New("transcoding required but disabled")
	// ErrUnsupportedFormat is returned for output formats ffmpeg is not set up to produce.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

type audioCodec struct {
	codec     string
	container string
	lossless  bool
}

var audioCodecs = map[string]audioCodec{
	"mp3":  {codec: "libmp3lame", container: "mp3"},
	"ogg":  {codec: "libvorbis", container: "ogg"},
	"oga":  {codec: "libvorbis", container: "ogg"},
	"opus": {codec: "libopus", container: "opus"},
	"aac":  {codec: "aac", container: "adts"},
	"m4a":  {codec: "aac", container: "adts"},
	"flac": {codec: "flac", container: "flac", lossless: true},
	"wav":  {codec: "pcm_s16le", container: "wav", lossless: true},
}

// Transcoder runs ffmpeg to convert library tracks into the format and
// bit rate a player asked for.
type Transcoder struct {
	mediaDir    string
	enabled     bool
	ffmpegPath  string
	ffprobePath string

	processes map[uint64]*exec.Cmd
	nextID    uint64
	processMu sync.Mutex
}

// New creates a new Transcoder reading tracks from mediaDir.
func New(mediaDir string, enabled bool) *Transcoder {
	return &Transcoder{
		mediaDir:    mediaDir,
		enabled:     enabled,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		processes:   make(map[uint64]*exec.Cmd),
	}
}

// IsEnabled returns whether transcoding is enabled.
func (t *Transcoder) IsEnabled() bool {
	return t.enabled
}

// ActiveProcesses returns the number of running ffmpeg processes.
func (t *Transcoder) ActiveProcesses() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// TranscodedStream opens the output described by p. Tracks that need no
// processing are read straight from disk; otherwise ffmpeg is started and
// its output streamed. Closing the stream stops ffmpeg.
func (t *Transcoder) TranscodedStream(ctx context.Context, p Parameters) (io.ReadCloser, error) {
	input := filepath.Join(t.mediaDir, filepath.FromSlash(p.Track.Path))

	if !p.NeedsProcessing() {
		f, err := filesystem.OpenWithRetry(input, filesystem.DefaultRetryConfig())
		if err != nil {
			metrics.TranscoderJobsTotal.WithLabelValues("passthrough", "error").Inc()
			return nil, fmt.Errorf("open %s: %w", p.Track.Path, err)
		}
		metrics.TranscoderJobsTotal.WithLabelValues("passthrough", "success").Inc()
		return f, nil
	}

	if !t.enabled {
		return nil, ErrTranscodingDisabled
	}

	args, err := buildArgs(input, p)
	if err != nil {
		return nil, err
	}
	return t.start(ctx, p, args)
}

func (t *Transcoder) start(ctx context.Context, p Parameters, args []string) (*processStream, error) {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	s := &processStream{t: t, cmd: cmd, stdout: stdout, kind: p.Kind(), path: p.Track.Path}
	cmd.Stderr = &s.stderr

	if err := cmd.Start(); err != nil {
		metrics.TranscoderJobsTotal.WithLabelValues(s.kind, "error").Inc()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.started = time.Now()

	t.processMu.Lock()
	t.nextID++
	s.id = t.nextID
	t.processes[s.id] = cmd
	t.processMu.Unlock()

	metrics.TranscoderJobsInProgress.Inc()
	logging.Debug("Started ffmpeg (%s) for %s", s.kind, p)
	return s, nil
}

func (t *Transcoder) untrack(id uint64) {
	t.processMu.Lock()
	delete(t.processes, id)
	t.processMu.Unlock()
}

// Cleanup stops all active transcoding processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for id, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process %d (pid %d)", id, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process %d: %v", id, err)
			}
		}
	}
}

// processStream is the stdout of a running ffmpeg process.
type processStream struct {
	t       *Transcoder
	id      uint64
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	kind    string
	path    string
	started time.Time

	waitOnce sync.Once
	waitErr  error
	closed   bool
}

func (s *processStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, fmt.Errorf("transcoding error: %w", werr)
		}
	}
	return n, err
}

// Close stops ffmpeg if it is still running. It is safe to call more than once.
func (s *processStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd.ProcessState == nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

// wait reaps the process once and records the outcome.
func (s *processStream) wait() error {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		s.t.untrack(s.id)
		metrics.TranscoderJobsInProgress.Dec()
		metrics.TranscoderJobDuration.Observe(time.Since(s.started).Seconds())

		if err != nil && !s.closed {
			metrics.TranscoderJobsTotal.WithLabelValues(s.kind, "error").Inc()
			logging.Error("FFmpeg failed for %s: %v: %s", s.path, err, s.stderr.String())
			s.waitErr = err
			return
		}
		metrics.TranscoderJobsTotal.WithLabelValues(s.kind, "success").Inc()
	})
	return s.waitErr
}

// buildArgs returns the ffmpeg arguments producing p from input on stdout.
func buildArgs(input string, p Parameters) ([]string, error) {
	if p.Track.IsVideo() {
		return buildVideoArgs(input, p)
	}

	ac, ok := audioCodecs[p.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.Format)
	}

	args := []string{"-v", "error", "-nostdin", "-i", input, "-map", "0:a:0", "-vn", "-c:a", ac.codec}
	if !ac.lossless && p.MaxBitRate > 0 {
		args = append(args, "-b:a", strconv.Itoa(p.MaxBitRate)+"k")
	}
	return append(args, "-f", ac.container, "-"), nil
}

func buildVideoArgs(input string, p Parameters) ([]string, error) {
	var vcodec, acodec, container []string
	switch p.Format {
	case "mp4":
		vcodec = []string{"-c:v", "libx264", "-preset", "fast", "-crf", "23"}
		acodec = []string{"-c:a", "aac", "-b:a", "128k"}
		container = []string{"-movflags", "frag_keyframe+empty_moov+faststart", "-f", "mp4"}
	case "webm":
		vcodec = []string{"-c:v", "libvpx-vp9", "-deadline", "realtime", "-crf", "32", "-b:v", "0"}
		acodec = []string{"-c:a", "libopus", "-b:a", "128k"}
		container = []string{"-f", "webm"}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.Format)
	}

	args := []string{"-v", "error", "-nostdin"}
	if p.Video.TimeOffset > 0 {
		args = append(args, "-ss", strconv.Itoa(p.Video.TimeOffset))
	}
	args = append(args, "-i", input)
	if p.Video.Duration > 0 {
		args = append(args, "-t", strconv.Itoa(p.Video.Duration))
	}
	if p.Video.Width > 0 || p.Video.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%s:%s", scaleDim(p.Video.Width), scaleDim(p.Video.Height)))
	}
	args = append(args, vcodec...)
	if p.MaxBitRate > 0 {
		args = append(args, "-maxrate", strconv.Itoa(p.MaxBitRate)+"k", "-bufsize", strconv.Itoa(2*p.MaxBitRate)+"k")
	}
	args = append(args, acodec...)
	args = append(args, container...)
	return append(args, "-"), nil
}

// scaleDim keeps the aspect ratio for an unset dimension.
func scaleDim(v int) string {
	if v <= 0 {
		return "-2"
	}
	return strconv.Itoa(v)
}
