package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func microTs(offset time.Duration) int64 {
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	return base.Add(offset).UnixMicro()
}

func sampleEvents() []Event {
	return []Event{
		{ActorID: "a1", EventID: "e1", Name: "signup", Timestamp: microTs(0)},
		{ActorID: "a1", EventID: "e2", Name: "activate", Timestamp: microTs(time.Minute)},
		{ActorID: "a2", EventID: "e3", Name: "signup", Timestamp: microTs(30 * time.Second)},
	}
}

func TestAppendSortsAndDeduplicates(t *testing.T) {
	s := NewEventStore()

	// Shuffled input plus an exact duplicate.
	events := sampleEvents()
	events = append([]Event{events[1]}, events[0], events[2], events[1])
	s.Append("demo", events)

	if got := s.Count("demo"); got != 3 {
		t.Fatalf("Count = %d, want 3 after dedupe", got)
	}

	stored := s.GetEventsInRange("demo", time.Time{}, time.Time{})
	for i := 1; i < len(stored); i++ {
		if stored[i].Timestamp < stored[i-1].Timestamp {
			t.Fatalf("events not sorted: %d before %d", stored[i].Timestamp, stored[i-1].Timestamp)
		}
	}
	if stored[0].EventID != "e1" || stored[2].EventID != "e2" {
		t.Errorf("unexpected order: %s .. %s", stored[0].EventID, stored[2].EventID)
	}
}

func TestAppendDeduplicatesAcrossCalls(t *testing.T) {
	s := NewEventStore()
	s.Append("demo", sampleEvents())
	s.Append("demo", sampleEvents())

	if got := s.Count("demo"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()

	s := NewEventStore()
	s.Append("demo", sampleEvents())
	if err := s.Save(dir, "demo"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewEventStore()
	if err := reloaded.Load(dir, "demo"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := reloaded.Count("demo"); got != 3 {
		t.Errorf("reloaded Count = %d, want 3", got)
	}
	if got, want := reloaded.GetLatestTimestamp("demo"), time.UnixMicro(microTs(time.Minute)); !got.Equal(want) {
		t.Errorf("latest timestamp = %v, want %v", got, want)
	}
}

func TestLoadMissingCacheIsNotAnError(t *testing.T) {
	s := NewEventStore()
	if err := s.Load(t.TempDir(), "never-saved"); err != nil {
		t.Errorf("Load of a missing cache = %v, want nil", err)
	}
}

func TestLoadFileRejectsInvalidLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"actorId":"a1","event":"signup","ts":1}
not json at all
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewEventStore()
	if _, err := s.LoadFile(path, "demo"); err == nil {
		t.Error("LoadFile should fail on an invalid line")
	}
}

func TestLoadFileCountsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"actorId":"a1","eventId":"e1","event":"signup","ts":1}
{"actorId":"a2","eventId":"e2","event":"signup","ts":2}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewEventStore()
	n, err := s.LoadFile(path, "demo")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if n != 2 || s.Count("demo") != 2 {
		t.Errorf("loaded %d stored %d, want 2/2", n, s.Count("demo"))
	}
}

func TestGetEventsInRangeBoundaries(t *testing.T) {
	s := NewEventStore()
	s.Append("demo", sampleEvents())

	from := time.UnixMicro(microTs(10 * time.Second))
	got := s.GetEventsInRange("demo", from, time.Time{})
	if len(got) != 2 {
		t.Errorf("open-ended range = %d events, want 2", len(got))
	}

	to := time.UnixMicro(microTs(30 * time.Second))
	got = s.GetEventsInRange("demo", time.Time{}, to)
	if len(got) != 2 {
		t.Errorf("range up to 30s = %d events, want 2 (boundary inclusive)", len(got))
	}
}

func TestGetEventsForActor(t *testing.T) {
	s := NewEventStore()
	s.Append("demo", sampleEvents())

	got := s.GetEventsForActor("demo", "a1")
	if len(got) != 2 {
		t.Fatalf("a1 events = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.ActorID != "a1" {
			t.Errorf("leaked event for %s", e.ActorID)
		}
	}
}

func TestClearAndDatasets(t *testing.T) {
	s := NewEventStore()
	s.Append("one", sampleEvents())
	s.Append("two", sampleEvents())

	if got := s.Datasets(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Datasets = %v", got)
	}

	s.Clear("one")
	if s.Count("one") != 0 {
		t.Errorf("Count after Clear = %d, want 0", s.Count("one"))
	}
	if s.Count("two") != 3 {
		t.Errorf("untouched dataset Count = %d, want 3", s.Count("two"))
	}
}

func TestDatasetSourceGroupsByActor(t *testing.T) {
	s := NewEventStore()
	s.Append("demo", sampleEvents())

	src := NewDatasetSource(s, "demo")
	byActor, err := src.CandidateEvents(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("CandidateEvents failed: %v", err)
	}
	if len(byActor) != 2 {
		t.Fatalf("actors = %d, want 2", len(byActor))
	}
	a1 := byActor["a1"]
	if len(a1) != 2 {
		t.Fatalf("a1 events = %d, want 2", len(a1))
	}
	if a1[1].Timestamp.Before(a1[0].Timestamp) {
		t.Error("per-actor events must stay in timestamp order")
	}
	if want := time.UnixMicro(microTs(0)); !a1[0].Timestamp.Equal(want) {
		t.Errorf("timestamp conversion: got %v, want %v", a1[0].Timestamp, want)
	}
}

func TestDatasetSourceHonorsCancelledContext(t *testing.T) {
	s := NewEventStore()
	s.Append("demo", sampleEvents())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDatasetSource(s, "demo").CandidateEvents(ctx, time.Time{}, time.Time{}); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
