// Package lock serializes concurrent backup sessions against the same
// target directory. A restore or verify session never takes it: those
// modes read a generation tree without mutating it, and a stale lock
// from a dead backup must not block them.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock wraps gofrs/flock keyed on a resolved backup target directory.
type FileLock struct {
	fl   *flock.Flock
	path string
}

// New returns the lock guarding target, at /tmp/pushbackup_<hash>.lock.
// target is the fully resolved, post-template directory (e.g. after
// {HOST}/{SPACE} substitution), so two spaces resolving to the same
// filesystem path contend for the same lock and two distinct spaces never do.
func New(target string) *FileLock {
	abs := filepath.Clean(target)
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("/tmp/pushbackup_%s.lock", hex.EncodeToString(sum[:8]))
	return &FileLock{fl: flock.New(name), path: name}
}

// TryLock attempts a non-blocking acquisition. A false return means another
// backup session currently holds the target; the caller should treat this
// as a WARNING and abort the session rather than a fatal error, since the
// contending session will complete on its own.
func (l *FileLock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Unlock releases the lock and best-effort removes its file from /tmp.
func (l *FileLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	_ = os.Remove(l.path)
	return nil
}
