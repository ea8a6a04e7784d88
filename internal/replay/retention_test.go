package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"steelrain/sim/internal/logging"
)

func writeBundleDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestSweepEnforcesBundleCount(t *testing.T) {
	root := t.TempDir()
	oldest := writeBundleDir(t, root, "match-a", 3*time.Hour)
	middle := writeBundleDir(t, root, "match-b", 2*time.Hour)
	newest := writeBundleDir(t, root, "match-c", time.Hour)

	sweeper := NewSweeper(root, RetentionPolicy{MaxBundles: 2}, logging.NewTestLogger())
	sweeper.Sweep()

	//1.- Only the two newest bundles survive the count limit.
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Fatalf("oldest bundle survived: %v", err)
	}
	for _, dir := range []string{middle, newest} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("recent bundle removed: %v", err)
		}
	}
	stats := sweeper.Stats()
	if stats.Bundles != 2 {
		t.Fatalf("stats report %d bundles", stats.Bundles)
	}
}

func TestSweepEnforcesAge(t *testing.T) {
	root := t.TempDir()
	stale := writeBundleDir(t, root, "match-old", 48*time.Hour)
	fresh := writeBundleDir(t, root, "match-new", time.Minute)

	sweeper := NewSweeper(root, RetentionPolicy{MaxAge: 24 * time.Hour}, logging.NewTestLogger())
	sweeper.Sweep()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale bundle survived: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh bundle removed: %v", err)
	}
}

func TestSweepIgnoresLooseFiles(t *testing.T) {
	root := t.TempDir()
	//1.- Stray files in the journal root are not bundles and must be ignored.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sweeper := NewSweeper(root, RetentionPolicy{MaxBundles: 1}, logging.NewTestLogger())
	sweeper.Sweep()
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); err != nil {
		t.Fatalf("loose file removed: %v", err)
	}
}
