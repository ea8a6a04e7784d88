package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var matchIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// snapshotInterval bounds how often buffered battlefield snapshots are
// committed to the compressed stream.
const snapshotInterval = 200 * time.Millisecond

// snapshotBlob stages one battlefield snapshot until the cadence flush.
type snapshotBlob struct {
	Round      uint32
	Turn       uint64
	CapturedAt time.Time
	Payload    []byte
}

// Journal streams match telemetry to disk: a snappy-compressed JSONL log of
// turn events plus a zstd stream of length-prefixed battlefield snapshots.
type Journal struct {
	mu             sync.Mutex
	dir            string
	now            func() time.Time
	eventFile      *os.File
	eventStream    *snappy.Writer
	snapshotFile   *os.File
	snapshotStream *zstd.Encoder
	pending        []snapshotBlob
	lastFlush      time.Time
	headerSeed     string
	headerRounds   int
	headerTier     int
	headerTerrain  TerrainParameters
}

// Manifest describes the journal bundle layout so tooling can locate files.
type Manifest struct {
	Version            int    `json:"version"`
	CreatedAt          string `json:"created_at"`
	SnapshotIntervalMs int    `json:"snapshot_interval_ms"`
	EventsPath         string `json:"events_path"`
	SnapshotsPath      string `json:"snapshots_path"`
}

// Event is one decoded turn-event line from the journal.
type Event struct {
	Round      int             `json:"round"`
	Turn       uint64          `json:"turn"`
	CapturedAt string          `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewJournal prepares the bundle directory and opens the compressed sinks.
func NewJournal(root, matchID string, clock func() time.Time) (*Journal, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("journal root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := matchIDCleaner.ReplaceAllString(matchID, "")
	if cleaned == "" {
		cleaned = "match"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventsPath := filepath.Join(path, "events.jsonl.sz")
	snapshotsPath := filepath.Join(path, "snapshots.bin.zst")
	manifestPath := filepath.Join(path, "manifest.json")

	eventFile, err := os.Create(eventsPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	snapshotFile, err := os.Create(snapshotsPath)
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	snapshotStream, err := zstd.NewWriter(snapshotFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		snapshotFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:            1,
		CreatedAt:          created.Format(time.RFC3339Nano),
		SnapshotIntervalMs: int(snapshotInterval / time.Millisecond),
		EventsPath:         "events.jsonl.sz",
		SnapshotsPath:      "snapshots.bin.zst",
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(manifestPath, data, 0o644)
	}
	if err != nil {
		snapshotStream.Close()
		snapshotFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	journal := &Journal{
		dir:            path,
		now:            clock,
		eventFile:      eventFile,
		eventStream:    eventStream,
		snapshotFile:   snapshotFile,
		snapshotStream: snapshotStream,
	}
	return journal, manifest, nil
}

// Directory exposes the directory backing the journal bundle.
func (j *Journal) Directory() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// AppendEvent marshals one turn event onto the compressed JSONL log.
func (j *Journal) AppendEvent(round int, turn uint64, eventType string, payload any) error {
	if j == nil {
		return fmt.Errorf("journal not initialised")
	}
	captured := j.now().UTC()

	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = encoded
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	//1.- One self-describing JSON line per event keeps downstream parsers streaming.
	line, err := json.Marshal(Event{
		Round:      round,
		Turn:       turn,
		CapturedAt: captured.Format(time.RFC3339Nano),
		Type:       eventType,
		Payload:    raw,
	})
	if err != nil {
		return err
	}
	if _, err := j.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := j.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	return j.eventStream.Flush()
}

// AppendSnapshot buffers a binary battlefield snapshot until the cadence
// window elapses.
func (j *Journal) AppendSnapshot(round int, turn uint64, payload []byte) error {
	if j == nil {
		return fmt.Errorf("journal not initialised")
	}
	captured := j.now().UTC()
	clone := append([]byte(nil), payload...)

	j.mu.Lock()
	defer j.mu.Unlock()

	//1.- Stage the snapshot so cadence enforcement can persist batches together.
	j.pending = append(j.pending, snapshotBlob{Round: uint32(round), Turn: turn, CapturedAt: captured, Payload: clone})
	if j.lastFlush.IsZero() {
		j.lastFlush = captured
		return nil
	}
	if captured.Sub(j.lastFlush) >= snapshotInterval {
		if err := j.flushLocked(); err != nil {
			return err
		}
		j.lastFlush = captured
	}
	return nil
}

// SetHeaderMetadata configures the header persisted when the journal closes.
func (j *Journal) SetHeaderMetadata(seed string, rounds, difficulty int, terrain TerrainParameters) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.headerSeed = seed
	j.headerRounds = rounds
	j.headerTier = difficulty
	//1.- Clone the terrain parameters so shared maps cannot mutate the header.
	j.headerTerrain = terrain.Clone()
	j.mu.Unlock()
}

// Flush forces pending snapshots to disk regardless of cadence.
func (j *Journal) Flush() error {
	if j == nil {
		return fmt.Errorf("journal not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flushLocked(); err != nil {
		return err
	}
	j.lastFlush = j.now().UTC()
	return nil
}

// Close flushes all buffers, writes the metadata header and releases handles.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	//1.- Persist the metadata header before dismantling the streaming sinks.
	var firstErr error
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		MatchSeed:     j.headerSeed,
		Rounds:        j.headerRounds,
		Difficulty:    j.headerTier,
		TerrainParams: j.headerTerrain.Clone(),
		FilePointer:   "manifest.json",
	}
	if err := WriteHeader(filepath.Join(j.dir, "header.json"), header); err != nil {
		firstErr = err
	}
	//2.- Attempt every flush and close, surfacing the first failure.
	if err := j.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.snapshotStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.snapshotFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes staged snapshots to the zstd stream; callers must hold
// the mutex.
func (j *Journal) flushLocked() error {
	if len(j.pending) == 0 {
		return nil
	}
	//1.- Length-prefixed records let replayers step the stream without parsing.
	for _, blob := range j.pending {
		header := make([]byte, 4+8+8+4)
		binary.LittleEndian.PutUint32(header[0:4], blob.Round)
		binary.LittleEndian.PutUint64(header[4:12], blob.Turn)
		binary.LittleEndian.PutUint64(header[12:20], uint64(blob.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[20:24], uint32(len(blob.Payload)))
		if _, err := j.snapshotStream.Write(header); err != nil {
			return err
		}
		if _, err := j.snapshotStream.Write(blob.Payload); err != nil {
			return err
		}
	}
	j.pending = j.pending[:0]
	return nil
}
