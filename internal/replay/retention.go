package replay

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"steelrain/sim/internal/logging"
)

// RetentionPolicy bounds how many finished journal bundles stay on disk.
type RetentionPolicy struct {
	MaxBundles int
	MaxAge     time.Duration
}

// StorageStats summarises the disk footprint of retained bundles.
type StorageStats struct {
	Bundles   int
	Bytes     int64
	LastSweep time.Time
}

// Sweeper prunes journal bundles according to a retention policy.
type Sweeper struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewSweeper constructs a sweeper for the provided journal root directory.
func NewSweeper(dir string, policy RetentionPolicy, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.L()
	}
	return &Sweeper{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if s == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Sweep eagerly so retention applies immediately on startup.
	s.Sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Stats returns the statistics from the most recent sweep.
func (s *Sweeper) Stats() StorageStats {
	if s == nil {
		return StorageStats{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

type bundleInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// Sweep applies the retention policy once, newest bundles kept first.
func (s *Sweeper) Sweep() {
	if s == nil || strings.TrimSpace(s.dir) == "" {
		return
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("journal retention scan failed",
			logging.Error(err), logging.String("directory", s.dir))
		return
	}

	//1.- Every subdirectory of the journal root is one match bundle.
	bundles := make([]bundleInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		size, modTime, err := bundleFootprint(path)
		if err != nil {
			s.log.Warn("journal retention stat failed",
				logging.Error(err), logging.String("path", path))
			continue
		}
		bundles = append(bundles, bundleInfo{path: path, size: size, modTime: modTime})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].modTime.After(bundles[j].modTime) })

	now := s.now()
	stats := StorageStats{LastSweep: now}
	kept := 0
	for _, bundle := range bundles {
		expired := s.policy.MaxAge > 0 && now.Sub(bundle.modTime) > s.policy.MaxAge
		overflow := s.policy.MaxBundles > 0 && kept >= s.policy.MaxBundles
		if expired || overflow {
			//2.- Remove the whole bundle so events, snapshots and header go together.
			if err := os.RemoveAll(bundle.path); err != nil {
				s.log.Warn("journal retention removal failed",
					logging.Error(err), logging.String("path", bundle.path))
				continue
			}
			s.log.Info("journal bundle removed", logging.String("path", bundle.path))
			continue
		}
		kept++
		stats.Bundles++
		stats.Bytes += bundle.size
	}

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func bundleFootprint(root string) (int64, time.Time, error) {
	var total int64
	var newest time.Time
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !d.IsDir() {
			total += info.Size()
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return total, newest, err
}
