package streaming

import (
	"testing"

	"media-streamer/internal/media"
)

func TestTransferStatusBeginEnd(t *testing.T) {
	s := NewTransferStatus("p1")
	if s.IsActive() {
		t.Error("Expected new status to be inactive")
	}

	s.Begin()
	s.Begin()
	s.SetTrack(media.Track{Title: "a"})
	s.End()

	if !s.IsActive() {
		t.Error("Expected status to stay active while a stream remains")
	}
	if _, ok := s.CurrentTrack(); !ok {
		t.Error("Expected track to survive while a stream remains")
	}

	s.End()
	if s.IsActive() {
		t.Error("Expected status to be inactive after the last stream ends")
	}
	if _, ok := s.CurrentTrack(); ok {
		t.Error("Expected track cleared after the last stream ends")
	}
}

func TestTransferStatusSnapshot(t *testing.T) {
	s := NewTransferStatus("p1")
	s.AddBytes(10)
	s.AddBytes(5)

	snap := s.Snapshot()
	if snap.PlayerID != "p1" {
		t.Errorf("Expected PlayerID=p1, got %s", snap.PlayerID)
	}
	if snap.BytesTransferred != 15 {
		t.Errorf("Expected BytesTransferred=15, got %d", snap.BytesTransferred)
	}
	if snap.Track != nil || snap.TrackStarted != nil {
		t.Error("Expected no track in snapshot")
	}

	s.SetTrack(media.Track{Title: "b"})
	snap = s.Snapshot()
	if snap.Track == nil || snap.Track.Title != "b" {
		t.Errorf("Expected track b in snapshot, got %+v", snap.Track)
	}
	if snap.TrackStarted == nil || snap.TrackStarted.IsZero() {
		t.Error("Expected TrackStarted to be set")
	}
}
