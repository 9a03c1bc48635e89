// Package gateway orchestrates one SSH-invoked rsync session: it parses the
// forced command, classifies it against the policy engine, resolves the
// backup space's target directory and retention, prunes and selects
// generations, assembles a safe rsync argv, and re-execs rsync.
package gateway

import "time"

// Config is the orchestrator's input, built from CLI flags and the SSH
// session environment.
type Config struct {
	// Host is the trusted, positional CLI argument identifying the remote
	// peer (configured per-key in the SSH authorized_keys forced command).
	Host string
	// ConfigPath is the backup configuration file (see internal/config).
	ConfigPath string
	// SSHOriginalCommand is normally read from the SSH_ORIGINAL_COMMAND
	// environment variable; passed in explicitly so the orchestrator stays
	// testable without process environment.
	SSHOriginalCommand string
	// RsyncBin is the rsync binary to re-exec; defaults to "rsync" on PATH.
	RsyncBin string
	// Progress selects the optional progress bar: "auto", "bar", or "none".
	// "auto" shows a bar only alongside --verbose; any other value shows none.
	Progress string
	Verbose  bool
	Debug    bool
	// Dir is the per-run scratch directory (see internal/runctx). When Debug
	// is set and a session captures a non-empty rsync stderr tail, it is
	// written there for post-mortem inspection. Empty disables the dump.
	Dir string
	// Now, if non-zero, fixes the wall-clock the orchestrator uses for
	// generation naming and pruning cutoffs; tests set this to control time.
	// Zero means time.Now().
	Now time.Time
}

func (c *Config) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

func (c *Config) rsyncBin() string {
	if c.RsyncBin == "" {
		return "rsync"
	}
	return c.RsyncBin
}
