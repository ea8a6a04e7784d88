package replay

import (
	"encoding/json"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestJournal(t *testing.T, clock *fakeClock) *Journal {
	t.Helper()
	journal, manifest, err := NewJournal(t.TempDir(), "duel #7", clock.Now)
	if err != nil {
		t.Fatalf("journal creation failed: %v", err)
	}
	if manifest.EventsPath == "" || manifest.SnapshotsPath == "" {
		t.Fatalf("manifest incomplete: %+v", manifest)
	}
	return journal
}

func TestJournalRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	journal := newTestJournal(t, clock)
	journal.SetHeaderMetadata("12345", 3, 2, TerrainParameters{"width": 800, "roughness": 0.55})

	//1.- Record a small mixed sequence of events and snapshots.
	type shot struct {
		Shooter string  `json:"shooter"`
		Angle   float64 `json:"angle"`
	}
	if err := journal.AppendEvent(1, 1, "shot_fired", shot{Shooter: "t1", Angle: -42}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := journal.AppendSnapshot(1, 1, []byte("frame-one")); err != nil {
		t.Fatalf("append snapshot: %v", err)
	}
	clock.Advance(time.Second)
	if err := journal.AppendSnapshot(1, 2, []byte("frame-two")); err != nil {
		t.Fatalf("append snapshot: %v", err)
	}
	if err := journal.AppendEvent(1, 2, "impact", nil); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	//2.- Reopen the bundle and verify the header metadata survived.
	bundle, err := OpenBundle(journal.Directory())
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	header := bundle.Header()
	if header.MatchSeed != "12345" || header.Rounds != 3 || header.Difficulty != 2 {
		t.Fatalf("header metadata lost: %+v", header)
	}
	if header.TerrainParams["width"] != 800 {
		t.Fatalf("terrain params lost: %+v", header.TerrainParams)
	}

	//3.- Events decode in recorded order with typed payloads intact.
	events, err := bundle.Events()
	if err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 2 || events[0].Type != "shot_fired" || events[1].Type != "impact" {
		t.Fatalf("unexpected events: %+v", events)
	}
	var decoded shot
	if err := json.Unmarshal(events[0].Payload, &decoded); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if decoded.Shooter != "t1" || decoded.Angle != -42 {
		t.Fatalf("payload corrupted: %+v", decoded)
	}

	//4.- Snapshots decode in recorded order with their payloads intact.
	snapshots, err := bundle.Snapshots()
	if err != nil {
		t.Fatalf("decode snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if string(snapshots[0].Payload) != "frame-one" || string(snapshots[1].Payload) != "frame-two" {
		t.Fatalf("snapshot payloads corrupted")
	}
	if snapshots[1].Round != 1 || snapshots[1].Turn != 2 {
		t.Fatalf("snapshot metadata corrupted: %+v", snapshots[1])
	}
}

func TestJournalSnapshotCadence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	journal := newTestJournal(t, clock)

	//1.- Snapshots inside the cadence window stay buffered in memory.
	for turn := uint64(1); turn <= 5; turn++ {
		if err := journal.AppendSnapshot(1, turn, []byte{byte(turn)}); err != nil {
			t.Fatalf("append snapshot: %v", err)
		}
		clock.Advance(10 * time.Millisecond)
	}
	if got := len(journal.pending); got != 5 {
		t.Fatalf("expected 5 buffered snapshots, got %d", got)
	}
	//2.- Crossing the cadence boundary flushes the whole batch.
	clock.Advance(snapshotInterval)
	if err := journal.AppendSnapshot(1, 6, []byte{6}); err != nil {
		t.Fatalf("append snapshot: %v", err)
	}
	if got := len(journal.pending); got != 0 {
		t.Fatalf("expected flush, %d snapshots still buffered", got)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestJournalRejectsMissingRoot(t *testing.T) {
	if _, _, err := NewJournal("", "match", nil); err == nil {
		t.Fatalf("expected missing root to fail")
	}
}

func TestHeaderValidation(t *testing.T) {
	//1.- A header without a file pointer is useless to catalogue tooling.
	if err := (Header{SchemaVersion: 1}).Validate(); err == nil {
		t.Fatalf("expected empty file_pointer to fail")
	}
	if err := (Header{SchemaVersion: 0, FilePointer: "manifest.json"}).Validate(); err == nil {
		t.Fatalf("expected zero schema_version to fail")
	}
	if err := (Header{SchemaVersion: 1, FilePointer: "manifest.json"}).Validate(); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
}
