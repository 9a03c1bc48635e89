package process

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ReapOnCancel starts a goroutine that, when ctx is canceled (the SSH
// channel died), sends SIGTERM to every child of the current process —
// chiefly the rsync subprocess — and SIGKILLs survivors after grace. This
// is what keeps a backup session from leaving an orphaned rsync tree
// behind when the client hangs up.
func ReapOnCancel(ctx context.Context, grace time.Duration) {
	go func() {
		<-ctx.Done()
		pid := os.Getpid()
		slog.Warn("watchdog: context canceled, terminating children", "pid", pid)

		// pgrep itself must not inherit the already-canceled ctx.
		res := RunLogged(context.Background(), "pgrep", "-P", strconv.Itoa(pid))
		if res.Err != nil {
			slog.Warn("watchdog: pgrep", "err", res.Err)
			return
		}
		out := res.Stdout
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line == "" {
				continue
			}
			childPID, _ := strconv.Atoi(line)
			slog.Info("watchdog: sending SIGTERM", "child", childPID)
			if err := syscall.Kill(childPID, syscall.SIGTERM); err != nil {
				slog.Warn("watchdog: SIGTERM failed", "pid", childPID, "err", err)
			}
		}
		time.Sleep(grace)
		// force kill remaining
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line == "" {
				continue
			}
			childPID, _ := strconv.Atoi(line)
			if err := syscall.Kill(childPID, syscall.SIGKILL); err != nil {
				slog.Warn("watchdog: SIGKILL failed", "pid", childPID, "err", err)
			}
		}
	}()
}
