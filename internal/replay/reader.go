package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Snapshot is one decoded battlefield snapshot from the journal stream.
type Snapshot struct {
	Round      int
	Turn       uint64
	CapturedAt time.Time
	Payload    []byte
}

// Bundle provides read access to a finished journal directory.
type Bundle struct {
	dir      string
	manifest Manifest
	header   Header
}

// OpenBundle loads the manifest and header of a journal directory.
func OpenBundle(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("bundle directory must be provided")
	}
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	header, err := ReadHeader(filepath.Join(dir, "header.json"))
	if err != nil {
		return nil, err
	}
	return &Bundle{dir: dir, manifest: manifest, header: header}, nil
}

// Header returns the bundle's match metadata.
func (b *Bundle) Header() Header {
	if b == nil {
		return Header{}
	}
	return b.header
}

// Manifest returns the bundle's file layout description.
func (b *Bundle) Manifest() Manifest {
	if b == nil {
		return Manifest{}
	}
	return b.manifest
}

// Events decodes the full turn-event log in recorded order.
func (b *Bundle) Events() ([]Event, error) {
	if b == nil {
		return nil, fmt.Errorf("bundle not initialised")
	}
	file, err := os.Open(filepath.Join(b.dir, b.manifest.EventsPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	//1.- The event log is snappy-framed JSONL, one event per line.
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var events []Event
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("decode event line %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Snapshots decodes the full battlefield snapshot stream in recorded order.
func (b *Bundle) Snapshots() ([]Snapshot, error) {
	if b == nil {
		return nil, fmt.Errorf("bundle not initialised")
	}
	file, err := os.Open(filepath.Join(b.dir, b.manifest.SnapshotsPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var snapshots []Snapshot
	header := make([]byte, 4+8+8+4)
	for {
		//1.- Each record is a fixed header followed by a length-prefixed payload.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return snapshots, nil
			}
			return nil, err
		}
		payload := make([]byte, binary.LittleEndian.Uint32(header[20:24]))
		if _, err := io.ReadFull(decoder, payload); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, Snapshot{
			Round:      int(binary.LittleEndian.Uint32(header[0:4])),
			Turn:       binary.LittleEndian.Uint64(header[4:12]),
			CapturedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(header[12:20]))).UTC(),
			Payload:    payload,
		})
	}
}
