package playlist

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"media-streamer/internal/media"

	"github.com/samber/lo"
)

// NoIndex is the cursor value of a queue with no current entry.
const NoIndex = -1

// Status is the playback status of a queue.
type Status int

const (
	// StatusPlaying means the queue is delivering tracks.
	StatusPlaying Status = iota
	// StatusStopped means the stream adapter reports end-of-stream.
	StatusStopped
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus converts "playing" or "stopped" to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "playing":
		return StatusPlaying, nil
	case "stopped":
		return StatusStopped, nil
	default:
		return StatusStopped, fmt.Errorf("unknown status %q", s)
	}
}

// InsertMode controls how AddFiles combines new tracks with the queue.
type InsertMode int

const (
	// InsertAppend adds tracks after the existing entries.
	InsertAppend InsertMode = iota
	// InsertReplace discards the existing entries first.
	InsertReplace
)

// ParseInsertMode converts "append" or "replace" to an InsertMode.
// An empty string means append.
func ParseInsertMode(s string) (InsertMode, error) {
	switch strings.ToLower(s) {
	case "", "append", "add":
		return InsertAppend, nil
	case "replace", "set":
		return InsertReplace, nil
	default:
		return InsertAppend, fmt.Errorf("unknown insert mode %q", s)
	}
}

// Handle identifies one entry of a queue. Adding the same track twice
// yields two different handles.
type Handle uint64

// Entry is a queued track together with its handle.
type Entry struct {
	Handle Handle      `json:"handle"`
	Track  media.Track `json:"track"`
}

// State is a consistent copy of a queue taken under its lock.
type State struct {
	Name         string                      `json:"name,omitempty"`
	Index        int                         `json:"index"`
	Status       Status                      `json:"status"`
	Repeat       bool                        `json:"repeat"`
	Random       *media.RandomSearchCriteria `json:"random,omitempty"`
	Entries      []Entry                     `json:"entries"`
	CanUndo      bool                        `json:"canUndo"`
	LastModified time.Time                   `json:"lastModified"`
}

type snapshot struct {
	items []Handle
	index int
	valid bool
}

// Queue is the ordered list of tracks a player works through. Every
// method is safe for concurrent use; each call observes and leaves the
// queue in a consistent state.
type Queue struct {
	mu sync.Mutex

	name         string
	tracks       map[Handle]media.Track
	nextHandle   Handle
	items        []Handle
	index        int
	status       Status
	repeat       bool
	random       *media.RandomSearchCriteria
	backup       snapshot
	lastModified time.Time
}

// NewQueue returns an empty queue with no current entry.
func NewQueue() *Queue {
	return &Queue{
		tracks:       make(map[Handle]media.Track),
		index:        NoIndex,
		status:       StatusPlaying,
		lastModified: time.Now(),
	}
}

// AddFiles adds tracks to the queue. Append keeps the cursor; replace
// discards the current entries and points the cursor at the first new
// track. Either way the queue is set to playing.
func (q *Queue) AddFiles(mode InsertMode, tracks ...media.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.makeBackup()
	if mode == InsertReplace {
		q.items = q.items[:0:0]
		q.index = NoIndex
		if len(tracks) > 0 {
			q.index = 0
		}
	}
	q.items = append(q.items, q.allocate(tracks)...)
	q.setStatus(StatusPlaying)
}

// AddFilesAt inserts tracks before position i. The current entry keeps
// playing; i is clamped to the queue bounds.
func (q *Queue) AddFilesAt(i int, tracks ...media.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.makeBackup()
	i = lo.Clamp(i, 0, len(q.items))
	current, ok := q.currentHandle()
	q.items = slices.Insert(q.items, i, q.allocate(tracks)...)
	if ok {
		q.follow(current)
	}
	q.setStatus(StatusPlaying)
}

// Next advances the cursor. Past the last entry it wraps to the first
// when repeat is enabled and otherwise leaves the queue stopped with no
// current entry.
func (q *Queue) Next() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next()
}

// NextIfCurrent advances like Next, but only while h is still the current
// entry. A stream that finishes a track uses it so a skip made while the
// track was playing is not advanced past. It reports whether it advanced.
func (q *Queue) NextIfCurrent(h Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.currentHandle(); !ok || cur != h {
		return false
	}
	q.next()
	return true
}

func (q *Queue) next() {
	q.makeBackup()
	q.touch()
	if len(q.items) == 0 {
		q.index = NoIndex
		q.status = StatusStopped
		return
	}

	q.index++
	if q.index >= len(q.items) {
		if q.repeat {
			q.index = 0
			return
		}
		q.index = NoIndex
		q.status = StatusStopped
	}
}

// Status returns the playback status.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// SetStatus changes the playback status. Starting a non-empty queue
// that has no current entry moves the cursor to the first entry.
func (q *Queue) SetStatus(s Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.setStatus(s)
}

// RemoveAt removes the entry at position i. It reports false when i is
// out of range, in which case the queue is unchanged. Removing the current
// entry makes the one sliding into its place current; if it was the last
// entry the queue is left without a current entry and stopped.
func (q *Queue) RemoveAt(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return false
	}

	q.makeBackup()
	q.items = slices.Delete(q.items, i, i+1)

	switch {
	case len(q.items) == 0:
		q.index = NoIndex
		q.status = StatusStopped
	case q.index == NoIndex:
	case i < q.index:
		q.index--
	case i == q.index && q.index >= len(q.items):
		// The last entry was current: nothing follows it, even with repeat.
		q.index = NoIndex
		q.status = StatusStopped
	}
	return true
}

// MoveUp swaps the entry at position i with the one before it. The
// cursor stays on the same entry. Out-of-range positions are ignored.
func (q *Queue) MoveUp(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i <= 0 || i >= len(q.items) {
		return
	}
	q.swap(i, i-1)
}

// MoveDown swaps the entry at position i with the one after it. The
// cursor stays on the same entry. Out-of-range positions are ignored.
func (q *Queue) MoveDown(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items)-1 {
		return
	}
	q.swap(i, i+1)
}

// Sort orders the entries by the given key. The sort is stable and the
// cursor stays on the same entry.
func (q *Queue) Sort(order SortOrder) {
	q.mu.Lock()
	defer q.mu.Unlock()

	less := order.compare()
	q.reorder(func(items []Handle) {
		slices.SortStableFunc(items, func(a, b Handle) int {
			return less(q.tracks[a], q.tracks[b])
		})
	})
}

// Shuffle randomizes the order of the entries. The current entry, if
// any, is moved to the front so playback continues uninterrupted.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, ok := q.currentHandle()
	q.reorder(func(items []Handle) {
		rand.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
		if ok {
			j := slices.Index(items, current)
			items[0], items[j] = items[j], items[0]
		}
	})
}

// Reverse reverses the order of the entries. The cursor stays on the
// same entry.
func (q *Queue) Reverse() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reorder(func(items []Handle) {
		slices.Reverse(items)
	})
}

// SetIndex makes the entry at position i current and sets the queue
// playing. Out-of-range positions leave the queue unchanged.
func (q *Queue) SetIndex(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return
	}
	q.makeBackup()
	q.index = i
	q.setStatus(StatusPlaying)
}

// Clear removes every entry. The status is left as it is.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.makeBackup()
	q.items = q.items[:0:0]
	q.index = NoIndex
	q.touch()
}

// Undo restores the entries and cursor saved by the most recent
// mutating call. Calling it again restores the same snapshot.
func (q *Queue) Undo() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.backup.valid {
		return
	}
	q.items = slices.Clone(q.backup.items)
	q.index = q.backup.index
	q.touch()
}

// Index returns the cursor, or NoIndex.
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Current returns the current entry.
func (q *Queue) Current() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	h, ok := q.currentHandle()
	if !ok {
		return Entry{}, false
	}
	return Entry{Handle: h, Track: q.tracks[h]}, true
}

// CurrentTrack returns the track of the current entry.
func (q *Queue) CurrentTrack() (media.Track, bool) {
	e, ok := q.Current()
	return e.Track, ok
}

// File returns the entry at position i.
func (q *Queue) File(i int) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return Entry{}, false
	}
	h := q.items[i]
	return Entry{Handle: h, Track: q.tracks[h]}, true
}

// Size returns the number of entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Entries returns a copy of the entries in queue order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries()
}

// Tracks returns a copy of the queued tracks in order.
func (q *Queue) Tracks() []media.Track {
	return lo.Map(q.Entries(), func(e Entry, _ int) media.Track {
		return e.Track
	})
}

// IsRepeatEnabled reports whether the queue wraps around at the end.
func (q *Queue) IsRepeatEnabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetRepeatEnabled turns wrap-around at the end of the queue on or off.
func (q *Queue) SetRepeatEnabled(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = enabled
	q.touch()
}

// RandomSearchCriteria returns a copy of the auto-random criteria, or nil
// when auto-random mode is off.
func (q *Queue) RandomSearchCriteria() *media.RandomSearchCriteria {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.random == nil {
		return nil
	}
	c := *q.random
	return &c
}

// SetRandomSearchCriteria enables auto-random mode with c, or disables it
// when c is nil.
func (q *Queue) SetRandomSearchCriteria(c *media.RandomSearchCriteria) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c == nil {
		q.random = nil
	} else {
		cc := *c
		q.random = &cc
	}
	q.touch()
}

// Name returns the queue's name, usually that of the playlist it was loaded from.
func (q *Queue) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.name
}

// SetName sets the queue's name.
func (q *Queue) SetName(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.name = name
}

// LastModified returns the time of the last change to the queue.
func (q *Queue) LastModified() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastModified
}

// State returns a consistent copy of the whole queue.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := State{
		Name:         q.name,
		Index:        q.index,
		Status:       q.status,
		Repeat:       q.repeat,
		Entries:      q.entries(),
		CanUndo:      q.backup.valid,
		LastModified: q.lastModified,
	}
	if q.random != nil {
		c := *q.random
		s.Random = &c
	}
	return s
}

func (q *Queue) entries() []Entry {
	return lo.Map(q.items, func(h Handle, _ int) Entry {
		return Entry{Handle: h, Track: q.tracks[h]}
	})
}

func (q *Queue) setStatus(s Status) {
	q.status = s
	if s == StatusPlaying && q.index == NoIndex && len(q.items) > 0 {
		q.index = 0
	}
	q.touch()
}

func (q *Queue) currentHandle() (Handle, bool) {
	if q.index < 0 || q.index >= len(q.items) {
		return 0, false
	}
	return q.items[q.index], true
}

// follow moves the cursor to wherever h now sits.
func (q *Queue) follow(h Handle) {
	q.index = slices.Index(q.items, h)
}

func (q *Queue) swap(i, j int) {
	q.reorder(func(items []Handle) {
		items[i], items[j] = items[j], items[i]
	})
}

// reorder snapshots the queue, permutes the entries with fn and keeps
// the cursor on the entry that was current before.
func (q *Queue) reorder(fn func(items []Handle)) {
	q.makeBackup()
	current, ok := q.currentHandle()
	fn(q.items)
	if ok {
		q.follow(current)
	}
	q.touch()
}

func (q *Queue) allocate(tracks []media.Track) []Handle {
	handles := make([]Handle, len(tracks))
	for i, t := range tracks {
		q.nextHandle++
		q.tracks[q.nextHandle] = t
		handles[i] = q.nextHandle
	}
	return handles
}

// makeBackup saves the entries and cursor for Undo. Tracks referenced by
// neither the live entries nor the new snapshot are released.
func (q *Queue) makeBackup() {
	q.backup = snapshot{
		items: slices.Clone(q.items),
		index: q.index,
		valid: true,
	}

	if len(q.tracks) == len(q.items) {
		return
	}
	live := make(map[Handle]struct{}, len(q.items))
	for _, h := range q.items {
		live[h] = struct{}{}
	}
	for h := range q.tracks {
		if _, ok := live[h]; !ok {
			delete(q.tracks, h)
		}
	}
}

func (q *Queue) touch() {
	q.lastModified = time.Now()
}

// compare is used by Sort; the zero track number sorts first.
func (o SortOrder) compare() func(a, b media.Track) int {
	switch o {
	case SortByArtist:
		return func(a, b media.Track) int { return cmp.Compare(a.Artist, b.Artist) }
	case SortByAlbum:
		return func(a, b media.Track) int { return cmp.Compare(a.Album, b.Album) }
	default:
		return func(a, b media.Track) int { return cmp.Compare(a.TrackNumber, b.TrackNumber) }
	}
}
