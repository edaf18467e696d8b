package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"media-streamer/internal/media"
	"media-streamer/internal/playlist"
	"media-streamer/internal/transcoder"
)

type fakeResolver struct{}

func (fakeResolver) Parameters(track media.Track, _ transcoder.Profile, maxBitRate int, format string, video transcoder.VideoSettings) transcoder.Parameters {
	return transcoder.Parameters{Track: track, Format: track.Format, MaxBitRate: maxBitRate, Video: video}
}

type fakeSource struct {
	mu       sync.Mutex
	content  map[string]string
	openErr  map[string]error
	closeErr error
	opened   []string
	closed   int
}

func newFakeSource(content map[string]string) *fakeSource {
	return &fakeSource{content: content, openErr: make(map[string]error)}
}

func (f *fakeSource) GetStream(_ context.Context, p transcoder.Parameters) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openErr[p.Track.Path]; err != nil {
		return nil, err
	}
	f.opened = append(f.opened, p.Track.Path)
	return &fakeStream{Reader: strings.NewReader(f.content[p.Track.Path]), src: f}, nil
}

type fakeStream struct {
	io.Reader
	src *fakeSource
}

func (s *fakeStream) Close() error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	s.src.closed++
	return s.src.closeErr
}

type scrobble struct {
	title      string
	submission bool
}

type fakeScrobbler struct {
	mu     sync.Mutex
	events []scrobble
}

func (f *fakeScrobbler) RegisterScrobble(track media.Track, _ string, submission bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, scrobble{track.Title, submission})
}

func (f *fakeScrobbler) String() string {
	var parts []string
	for _, e := range f.events {
		if e.submission {
			parts = append(parts, "stop:"+e.title)
		} else {
			parts = append(parts, "start:"+e.title)
		}
	}
	return strings.Join(parts, " ")
}

type fakeCounter struct {
	err     error
	folders []string
}

func (f *fakeCounter) IncrementPlayCount(_ context.Context, folder string) error {
	f.folders = append(f.folders, folder)
	return f.err
}

type fakeRandom struct {
	batches [][]media.Track
	err     error
	calls   int
	counts  []int
}

func (f *fakeRandom) RandomTracks(_ context.Context, c media.RandomSearchCriteria) ([]media.Track, error) {
	f.calls++
	f.counts = append(f.counts, c.Count)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func song(title string) media.Track {
	return media.Track{Path: title + ".mp3", Folder: "Album", Title: title, Format: "mp3", MediaType: media.MediaTypeMusic}
}

type fixture struct {
	queue     *playlist.Queue
	source    *fakeSource
	scrobbler *fakeScrobbler
	counter   *fakeCounter
	random    *fakeRandom
	status    *TransferStatus
	adapter   *Adapter
}

func newFixture(content map[string]string, titles ...string) *fixture {
	f := &fixture{
		queue:     playlist.NewQueue(),
		source:    newFakeSource(content),
		scrobbler: &fakeScrobbler{},
		counter:   &fakeCounter{},
		random:    &fakeRandom{},
		status:    NewTransferStatus("p1"),
	}
	tracks := make([]media.Track, len(titles))
	for i, title := range titles {
		tracks[i] = song(title)
	}
	if len(tracks) > 0 {
		f.queue.AddFiles(playlist.InsertAppend, tracks...)
	}
	f.adapter = NewAdapter(context.Background(), Config{
		Session:     Session{PlayerID: "p1", Username: "alice"},
		Queue:       f.queue,
		Resolver:    fakeResolver{},
		Source:      f.source,
		Random:      f.random,
		PlayCounter: f.counter,
		Scrobbler:   f.scrobbler,
		Status:      f.status,
	})
	return f
}

func TestAdapterConcatenatesTracks(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAA", "b.mp3": "BB", "c.mp3": "C"}, "a", "b", "c")

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "AAABBC" {
		t.Errorf("Expected AAABBC, got %q", data)
	}
	if f.queue.Status() != playlist.StatusStopped || f.queue.Index() != playlist.NoIndex {
		t.Errorf("Expected exhausted stopped queue, got index=%d status=%s", f.queue.Index(), f.queue.Status())
	}
	if got := f.scrobbler.String(); got != "start:a stop:a start:b stop:b start:c stop:c" {
		t.Errorf("Unexpected scrobbles: %s", got)
	}
	if f.source.closed != 3 {
		t.Errorf("Expected 3 streams closed, got %d", f.source.closed)
	}
	if len(f.counter.folders) != 3 {
		t.Errorf("Expected 3 play count updates, got %d", len(f.counter.folders))
	}
	if f.status.BytesTransferred() != 6 {
		t.Errorf("Expected 6 bytes transferred, got %d", f.status.BytesTransferred())
	}

	if err := f.adapter.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if len(f.scrobbler.events) != 6 {
		t.Errorf("Expected Close with nothing open to add no scrobble, got %s", f.scrobbler)
	}
}

func TestAdapterSmallBuffer(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "hello ", "b.mp3": "world"}, "a", "b")

	var out strings.Builder
	buf := make([]byte, 4)
	for {
		n, err := f.adapter.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
	if out.String() != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", out.String())
	}
}

func TestAdapterStoppedQueue(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAA"}, "a")
	f.queue.SetStatus(playlist.StatusStopped)

	n, err := f.adapter.Read(make([]byte, 8))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("Expected (0, EOF) for stopped queue, got (%d, %v)", n, err)
	}
}

func TestAdapterStoppedMidTrack(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAAAA", "b.mp3": "BBB"}, "a", "b")

	buf := make([]byte, 2)
	if n, err := f.adapter.Read(buf); err != nil || string(buf[:n]) != "AA" {
		t.Fatalf("Expected AA, got %q (%v)", buf[:n], err)
	}

	f.queue.SetStatus(playlist.StatusStopped)

	n, err := f.adapter.Read(buf)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("Expected (0, EOF) after stopping with bytes left, got (%d, %v)", n, err)
	}
	if got := f.status.Snapshot().BytesTransferred; got != 2 {
		t.Errorf("Expected 2 bytes transferred, got %d", got)
	}
}

func TestAdapterEmptyQueue(t *testing.T) {
	f := newFixture(nil)

	if _, err := f.adapter.Read(make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF, got %v", err)
	}
	if len(f.scrobbler.events) != 0 {
		t.Errorf("Expected no scrobbles, got %s", f.scrobbler)
	}
}

func TestAdapterFollowsSkip(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAA", "b.mp3": "BBBB", "c.mp3": "CCCC"}, "a", "b", "c")

	buf := make([]byte, 2)
	if n, err := f.adapter.Read(buf); err != nil || string(buf[:n]) != "AA" {
		t.Fatalf("Expected AA, got %q (%v)", buf[:n], err)
	}

	f.queue.SetIndex(2)

	if n, err := f.adapter.Read(buf); err != nil || string(buf[:n]) != "CC" {
		t.Fatalf("Expected CC after skip, got %q (%v)", buf[:n], err)
	}
	if got := f.scrobbler.String(); got != "start:a stop:a start:c" {
		t.Errorf("Unexpected scrobbles: %s", got)
	}
}

// hookSource runs hook when the stream for path reaches its end, as a
// control request landing while the track is still being read.
type hookSource struct {
	*fakeSource
	path string
	hook func()
}

func (h *hookSource) GetStream(ctx context.Context, p transcoder.Parameters) (io.ReadCloser, error) {
	rc, err := h.fakeSource.GetStream(ctx, p)
	if err != nil || p.Track.Path != h.path {
		return rc, err
	}
	return &hookStream{ReadCloser: rc, hook: h.hook}, nil
}

type hookStream struct {
	io.ReadCloser
	hook func()
	once sync.Once
}

func (s *hookStream) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		s.once.Do(s.hook)
	}
	return n, err
}

func TestAdapterSkipAtTrackEnd(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AA", "b.mp3": "BB", "c.mp3": "CC"}, "a", "b", "c")
	f.adapter.cfg.Source = &hookSource{fakeSource: f.source, path: "a.mp3", hook: func() { f.queue.SetIndex(2) }}

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "AACC" {
		t.Errorf("Expected the skip to c to be honored, got %q", data)
	}
	if got := f.scrobbler.String(); got != "start:a stop:a start:c stop:c" {
		t.Errorf("Unexpected scrobbles: %s", got)
	}
}

func TestAdapterCurrentRemoved(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAA", "b.mp3": "BBBB"}, "a", "b")

	buf := make([]byte, 2)
	if _, err := f.adapter.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	f.queue.RemoveAt(0)

	n, err := f.adapter.Read(buf)
	if err != nil || string(buf[:n]) != "BB" {
		t.Errorf("Expected BB after removing the current track, got %q (%v)", buf[:n], err)
	}
}

func TestAdapterReorderKeepsStream(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAA", "b.mp3": "BBBB"}, "a", "b")

	buf := make([]byte, 2)
	if _, err := f.adapter.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	f.queue.MoveDown(0)

	n, err := f.adapter.Read(buf)
	if err != nil || string(buf[:n]) != "AA" {
		t.Errorf("Expected the current track to continue after a reorder, got %q (%v)", buf[:n], err)
	}
	if len(f.source.opened) != 1 {
		t.Errorf("Expected no reopen, got %v", f.source.opened)
	}
}

func TestAdapterDuplicateTrackPlaysTwice(t *testing.T) {
	f := newFixture(map[string]string{"x.mp3": "X"}, "x", "x")

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "XX" {
		t.Errorf("Expected XX, got %q", data)
	}
}

func TestAdapterCloseScrobblesOnce(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAA"}, "a")
	f.source.closeErr = errors.New("close failed")

	if _, err := f.adapter.Read(make([]byte, 1)); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if err := f.adapter.Close(); err == nil {
		t.Error("Expected close error to be returned")
	}
	if err := f.adapter.Close(); err != nil {
		t.Errorf("Expected second Close to do nothing, got %v", err)
	}
	if got := f.scrobbler.String(); got != "start:a stop:a" {
		t.Errorf("Expected exactly one stop scrobble, got %s", got)
	}
	if _, ok := f.adapter.CurrentTrack(); ok {
		t.Error("Expected no current track after Close")
	}
}

func TestAdapterOpenError(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "A"}, "a")
	boom := errors.New("ffmpeg missing")
	f.source.openErr["a.mp3"] = boom

	_, err := f.adapter.Read(make([]byte, 4))
	if !errors.Is(err, boom) {
		t.Errorf("Expected open error to surface, got %v", err)
	}
	if len(f.scrobbler.events) != 0 {
		t.Errorf("Expected no scrobbles for a track that never opened, got %s", f.scrobbler)
	}
}

func TestAdapterAccountingFailureDoesNotStopPlayback(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AA"}, "a")
	f.counter.err = errors.New("database locked")

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "AA" {
		t.Errorf("Expected AA, got %q", data)
	}
}

func TestAdapterScrobbleExempt(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AA"}, "a")
	f.adapter.cfg.Session.ScrobbleExempt = true

	if _, err := io.ReadAll(f.adapter); err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if got := f.scrobbler.String(); got != "" {
		t.Errorf("Expected no scrobbles for an exempt player, got %s", got)
	}
	if len(f.counter.folders) != 1 {
		t.Errorf("Expected the play to be counted, got %v", f.counter.folders)
	}
}

func TestAdapterRandomRefill(t *testing.T) {
	f := newFixture(map[string]string{"x.mp3": "X", "y.mp3": "Y"})
	f.queue.SetRandomSearchCriteria(&media.RandomSearchCriteria{Artist: "Someone"})
	f.random.batches = [][]media.Track{{song("x"), song("y")}}

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "XY" {
		t.Errorf("Expected XY, got %q", data)
	}
	// One refill that filled the queue, one that came back empty.
	if f.random.calls != 2 {
		t.Errorf("Expected 2 searches, got %d", f.random.calls)
	}
	if f.random.counts[0] != DefaultRandomBatchSize {
		t.Errorf("Expected default batch size %d, got %d", DefaultRandomBatchSize, f.random.counts[0])
	}

	for i := 0; i < 3; i++ {
		if _, err := f.adapter.Read(make([]byte, 4)); !errors.Is(err, io.EOF) {
			t.Errorf("Expected EOF, got %v", err)
		}
	}
	if f.random.calls != 2 {
		t.Errorf("Expected no further searches for the same exhaustion, got %d", f.random.calls)
	}
}

func TestAdapterRandomRefillReplacesQueue(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "A", "x.mp3": "X"}, "a")
	f.queue.SetRandomSearchCriteria(&media.RandomSearchCriteria{Count: 5})
	f.random.batches = [][]media.Track{{song("x")}}

	data, err := io.ReadAll(f.adapter)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "AX" {
		t.Errorf("Expected AX, got %q", data)
	}
	if f.random.counts[0] != 5 {
		t.Errorf("Expected criteria count 5, got %d", f.random.counts[0])
	}
	if f.queue.Size() != 1 {
		t.Errorf("Expected refill to replace the queue, got %d entries", f.queue.Size())
	}
}

func TestAdapterRandomRefillError(t *testing.T) {
	f := newFixture(nil)
	f.queue.SetRandomSearchCriteria(&media.RandomSearchCriteria{})
	f.random.err = errors.New("search down")

	for i := 0; i < 3; i++ {
		if _, err := f.adapter.Read(make([]byte, 4)); !errors.Is(err, io.EOF) {
			t.Errorf("Expected EOF, got %v", err)
		}
	}
	if f.random.calls != 1 {
		t.Errorf("Expected a single search attempt, got %d", f.random.calls)
	}

	// New criteria count as a new request.
	f.queue.SetRandomSearchCriteria(&media.RandomSearchCriteria{Artist: "Other"})
	f.adapter.Read(make([]byte, 4))
	if f.random.calls != 2 {
		t.Errorf("Expected changed criteria to search again, got %d", f.random.calls)
	}
}

func TestAdapterRepeatWithEmptyTracksTerminates(t *testing.T) {
	f := newFixture(map[string]string{}, "a", "b")
	f.queue.SetRepeatEnabled(true)

	if _, err := f.adapter.Read(make([]byte, 4)); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF for a repeating queue of empty tracks, got %v", err)
	}
}

func TestAdapterReadByte(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "A", "b.mp3": "B"}, "a", "b")

	var got []byte
	for {
		b, err := f.adapter.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadByte failed: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "AB" {
		t.Errorf("Expected AB, got %q", got)
	}
}

func TestAdapterStatusTracksCurrent(t *testing.T) {
	f := newFixture(map[string]string{"a.mp3": "AAAA"}, "a")

	if _, err := f.adapter.Read(make([]byte, 1)); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	track, ok := f.status.CurrentTrack()
	if !ok || track.Title != "a" {
		t.Errorf("Expected status to show a, got %+v (%v)", track, ok)
	}
	snap := f.status.Snapshot()
	if snap.Track == nil || snap.BytesTransferred != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
}

func TestAdapterConcurrentControl(t *testing.T) {
	content := make(map[string]string)
	var titles []string
	for i := 0; i < 20; i++ {
		title := fmt.Sprintf("t%02d", i)
		titles = append(titles, title)
		content[title+".mp3"] = strings.Repeat("x", 100)
	}
	f := newFixture(content, titles...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			switch i % 4 {
			case 0:
				f.queue.MoveDown(i % 20)
			case 1:
				f.queue.Sort(playlist.SortByArtist)
			case 2:
				f.queue.Reverse()
			case 3:
				f.queue.MoveUp(i % 20)
			}
		}
	}()

	if _, err := io.Copy(io.Discard, f.adapter); err != nil {
		t.Errorf("Copy failed: %v", err)
	}
	<-done
	f.adapter.Close()
}
