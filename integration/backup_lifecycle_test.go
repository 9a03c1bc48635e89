//go:build integration

// Package integration drives the compiled pushbackup binary against a real
// local rsync client, standing in for sshd's forced-command invocation with
// a fake rsh script instead of a container or a real SSH daemon.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRsh stands in for sshd: rsync invokes it as `fakeRsh host <remote
// command words...>`, exactly as it would invoke ssh. The script drops the
// host argument, joins the rest into SSH_ORIGINAL_COMMAND the way sshd's
// forced command does, and execs the built binary over the same pipes.
const fakeRshTemplate = `#!/bin/sh
shift
export SSH_ORIGINAL_COMMAND="$*"
exec %q --config %q client1
`

func buildBinary(t *testing.T, dir string) string {
	t.Helper()
	bin := filepath.Join(dir, "pushbackup")
	cmd := exec.Command("go", "build", "-o", bin, "../cmd/pushbackup")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "building pushbackup: %s", out)
	return bin
}

func TestBackupLifecycleOverRealRsync(t *testing.T) {
	if _, err := exec.LookPath("rsync"); err != nil {
		t.Skip("rsync not found on PATH")
	}

	dir := t.TempDir()
	bin := buildBinary(t, dir)

	targetRoot := filepath.Join(dir, "targets")
	confPath := filepath.Join(dir, "pushbackup.conf")
	conf := "[global]\ntarget=" + targetRoot + "/{HOST}/{SPACE}\nkeep-count=3\n\n[client1:myspace]\n"
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o644))

	rsh := filepath.Join(dir, "fake-rsh.sh")
	script := fmt.Sprintf(fakeRshTemplate, bin, confPath)
	require.NoError(t, os.WriteFile(rsh, []byte(script), 0o755))

	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hello\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Flags chosen to satisfy every required/allowed option for backup mode
	// rather than relying on -a, whose exact wire expansion varies by rsync
	// version.
	client := exec.CommandContext(ctx, "rsync",
		"-rlptgoD", "-H", "-A", "-X", "-x",
		"--numeric-ids", "--delete-delay", "--delete-excluded",
		"-e", rsh,
		srcDir+"/", "remotehost:myspace",
	)
	var out bytes.Buffer
	client.Stdout = &out
	client.Stderr = &out
	err := client.Run()
	require.NoError(t, err, "rsync client run: %s", out.String())

	spaceDir := filepath.Join(targetRoot, "client1", "myspace")
	entries, err := os.ReadDir(spaceDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "expected exactly one published generation")
	require.True(t, entries[0].IsDir())

	published := filepath.Join(spaceDir, entries[0].Name(), "hello.txt")
	data, err := os.ReadFile(published)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))

	// temp/ must never survive a successful publish.
	_, err = os.Stat(filepath.Join(spaceDir, "temp"))
	require.True(t, os.IsNotExist(err))
}

func TestRestoreLifecycleOverRealRsync(t *testing.T) {
	if _, err := exec.LookPath("rsync"); err != nil {
		t.Skip("rsync not found on PATH")
	}

	dir := t.TempDir()
	bin := buildBinary(t, dir)

	targetRoot := filepath.Join(dir, "targets")
	spaceDir := filepath.Join(targetRoot, "client1", "myspace")
	genDir := filepath.Join(spaceDir, "@2026-01-01_00-00-00")
	require.NoError(t, os.MkdirAll(genDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(genDir, "hello.txt"), []byte("archived\n"), 0o644))

	confPath := filepath.Join(dir, "pushbackup.conf")
	conf := "[global]\ntarget=" + targetRoot + "/{HOST}/{SPACE}\n\n[client1:myspace]\n"
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o644))

	rsh := filepath.Join(dir, "fake-rsh.sh")
	script := fmt.Sprintf(fakeRshTemplate, bin, confPath)
	require.NoError(t, os.WriteFile(rsh, []byte(script), 0o755))

	destDir := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(destDir, 0o755))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := exec.CommandContext(ctx, "rsync",
		"-rlptgoD", "-x", "--numeric-ids",
		"-e", rsh,
		"remotehost:myspace/", destDir+"/",
	)
	var out bytes.Buffer
	client.Stdout = &out
	client.Stderr = &out
	err := client.Run()
	require.NoError(t, err, "rsync client run: %s", out.String())

	data, err := os.ReadFile(filepath.Join(destDir, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "archived\n", string(data))
}
