// Package generation manages the dated, hardlink-snapshot backup
// generations inside one target directory: enumeration, retention pruning,
// and atomic publication of a staged temp directory.
package generation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/undo-ransomware/pushbackup/internal/util/fs"
)

const (
	// nameLayout is the time.Time layout matching "@YYYY-MM-DD_HH-MM-SS".
	nameLayout = "2006-01-02_15-04-05"
	// TempDirName is the staging directory rsync writes into; it is the
	// only other entry besides generation directories a target may hold.
	TempDirName = "temp"
)

var nameRE = regexp.MustCompile(`^@20[0-9]{2}-[0-9]{2}-[0-9]{2}_[0-9]{2}-[0-9]{2}-[0-9]{2}$`)

// FormatName renders t as a generation directory name.
func FormatName(t time.Time) string {
	return "@" + t.Format(nameLayout)
}

// IsGenerationName reports whether name matches the generation regex.
func IsGenerationName(name string) bool {
	return nameRE.MatchString(name)
}

// Enumerate lists the generation directories under target, sorted ascending
// (oldest first); the name format sorts lexicographically in time order.
func Enumerate(target string) ([]string, error) {
	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && IsGenerationName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SelectPrevious returns the most recent generation, or "" if none exist.
func SelectPrevious(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

// DefaultKeepCount is used when neither keep-count nor keep-duration is
// configured: effectively unlimited retention.
const DefaultKeepCount = 1_000_000

// ClampKeepCount enforces the keep-count ≥ 1 invariant, reporting whether
// the input was adjusted (the caller should emit a WARNING when clamped).
func ClampKeepCount(n int) (clamped int, wasClamped bool) {
	if n < 1 {
		return 1, true
	}
	return n, false
}

// Prune removes the oldest generations under target while both the count
// and age clamps would still be exceeded: the generation count is above
// keepCount, and the oldest remaining generation is older than keepDuration
// relative to now. The newest generation is never removed, even when
// keepCount is below 1. names must be Enumerate's ascending output. Returns
// the generations that remain and the ones removed, in removal order.
func Prune(target string, names []string, keepCount int, keepDuration time.Duration, now time.Time) (kept, removed []string, err error) {
	cutoff := FormatName(now.Add(-keepDuration))
	kept = append([]string(nil), names...)
	for len(kept) > keepCount && len(kept) > 1 && kept[0] <= cutoff {
		victim := kept[0]
		if err := os.RemoveAll(filepath.Join(target, victim)); err != nil {
			return kept, removed, fmt.Errorf("generation: prune %s: %w", victim, err)
		}
		removed = append(removed, victim)
		kept = kept[1:]
	}
	return kept, removed, nil
}

// CreateTemp ensures target/temp exists and returns its path. It is reused
// across attempts so a previously interrupted rsync can resume via
// --partial-dir.
func CreateTemp(target string) (string, error) {
	path := filepath.Join(target, TempDirName)
	if err := fs.MkdirP(path); err != nil {
		return "", fmt.Errorf("generation: create temp dir: %w", err)
	}
	return path, nil
}

// Publish renames target/temp to a new generation named after now, and
// returns the published name. Only valid after a successful rsync run.
func Publish(target string, now time.Time) (string, error) {
	name := FormatName(now)
	tempPath := filepath.Join(target, TempDirName)
	finalPath := filepath.Join(target, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("generation: publish %s: %w", name, err)
	}
	return name, nil
}
