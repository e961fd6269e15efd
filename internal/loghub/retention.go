package loghub

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultRetentionDays is the fallback retention window when the daemon
// config does not override it (spec.md §9, Open Question (a)).
const DefaultRetentionDays = 7

// DefaultMaxFileBytes is the fallback per-file size threshold when the
// daemon config does not override it (spec.md §4.2: "files exceeding a
// configured maximum size (default 50 MiB)").
const DefaultMaxFileBytes = 50 * 1024 * 1024

// RetentionPolicy controls the periodic sweep of on-disk log files. No pack
// example implements a log-retention sweep; this is a plain policy struct
// with no third-party grounding beyond the file-walk itself (see
// DESIGN.md).
type RetentionPolicy struct {
	MaxAge       time.Duration
	MaxFileBytes int64 // 0 means unbounded; a file over this size is deleted, regardless of age
}

// DefaultRetentionPolicy returns the spec's default 7-day, 50 MiB-per-file
// policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{MaxAge: DefaultRetentionDays * 24 * time.Hour, MaxFileBytes: DefaultMaxFileBytes}
}

// Sweep walks root (the daemon's log root directory) and removes any
// regular file older than policy.MaxAge (measured by modification time)
// or larger than policy.MaxFileBytes, per spec.md §4.2: "files older than
// a configured retention window ... and files exceeding a configured
// maximum size ... are eligible for rotation or deletion." Each file is
// judged independently; there is no aggregate byte budget across files.
// It returns the paths it removed.
func Sweep(root string, policy RetentionPolicy) ([]string, error) {
	now := time.Now()
	var removed []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		tooOld := policy.MaxAge > 0 && now.Sub(info.ModTime()) > policy.MaxAge
		tooBig := policy.MaxFileBytes > 0 && info.Size() > policy.MaxFileBytes
		if !tooOld && !tooBig {
			return nil
		}
		if rmErr := os.Remove(path); rmErr == nil {
			removed = append(removed, path)
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// RunPeriodicSweep runs Sweep against root on every tick of interval until
// stop is closed.
func RunPeriodicSweep(root string, policy RetentionPolicy, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = Sweep(root, policy)
		case <-stop:
			return
		}
	}
}
