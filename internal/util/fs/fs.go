package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// MkdirP creates path recursively with 0755 permissions, like `mkdir -p`.
// Not an error if the directory already exists.
func MkdirP(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	return os.MkdirAll(path, 0o755)
}

// CleanupDir removes everything inside dir. dir itself is left in place.
func CleanupDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}
