package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StorageMonitor reports the on-disk size of the archive directory. Walking
// the directory is slow, so results are cached.
type StorageMonitor struct {
	dir           string
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewStorageMonitor creates a monitor for dir with a cache of cacheDuration
func NewStorageMonitor(dir string, cacheDuration time.Duration) *StorageMonitor {
	return &StorageMonitor{
		dir:           dir,
		cacheDuration: cacheDuration,
	}
}

// Dir returns the monitored directory
func (sm *StorageMonitor) Dir() string {
	return sm.dir
}

// Usage returns the directory size in bytes, recomputed at most once per
// cache duration.
func (sm *StorageMonitor) Usage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := dirSize(sm.dir)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// Refresh drops the cached value so the next Usage call walks the directory
func (sm *StorageMonitor) Refresh() {
	sm.mu.Lock()
	sm.lastCheck = time.Time{}
	sm.mu.Unlock()
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		actual, err := diskUsage(filePath, info)
		if err != nil {
			actual = info.Size()
		}
		size += actual
		return nil
	})
	return size, err
}
