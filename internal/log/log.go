package log

import (
	"log/slog"
	"os"
)

// Setup installs the global slog.Logger: Debug level if debug is set, Info
// if verbose, Warn otherwise. Also makes it the slog.Default.
func Setup(debug bool, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}
