package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"steelrain/sim/internal/replay"
)

// Entry captures a journal header alongside its resolved bundle directory.
type Entry struct {
	HeaderPath string        `json:"header_path"`
	BundleDir  string        `json:"bundle_dir"`
	Header     replay.Header `json:"header"`
}

// List walks the directory tree and returns parsed journal headers.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the directory tree searching for journal header documents.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			HeaderPath: path,
			BundleDir:  filepath.Dir(path),
			Header:     header,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	//2.- Stable ordering keeps repeated catalogue runs diffable.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.MatchSeed == entries[j].Header.MatchSeed {
			return entries[i].BundleDir < entries[j].BundleDir
		}
		return entries[i].Header.MatchSeed < entries[j].Header.MatchSeed
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	//1.- Marshal with indentation to keep CLI output legible for operators.
	return json.MarshalIndent(entries, "", "  ")
}
