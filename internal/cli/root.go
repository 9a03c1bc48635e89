// Package cli wires the cobra root command: flag parsing into a
// gateway.Config, logger setup, and signal handling. It returns the
// gateway's error unchanged; cmd/pushbackup turns an *ExitError into the
// process exit code.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/undo-ransomware/pushbackup/internal/gateway"
	"github.com/undo-ransomware/pushbackup/internal/log"
	"github.com/undo-ransomware/pushbackup/internal/runctx"
	"github.com/undo-ransomware/pushbackup/internal/util/signalctx"
)

// Config holds the values of the CLI flags.
type Config struct {
	ConfigPath string
	Host       string
	Debug      bool
	Verbose    bool
	KeepRunTmp bool
	Progress   string
}

var cfg = &Config{}

// RootCmd is the entry point invoked from cmd/pushbackup.
var RootCmd = &cobra.Command{
	Use:           "pushbackup [flags] <host>",
	Short:         "rsync command gatekeeper and backup-generation manager",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Setup(cfg.Debug, cfg.Verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Host = args[0]
		slog.Info("pushbackup starting", "host", cfg.Host)

		// --debug implies keeping the scratch dir too, since that's where the
		// gateway writes the captured rsync stderr tail for post-mortem use.
		rc, err := runctx.New("pushbackup_run_", cfg.KeepRunTmp || cfg.Debug)
		if err != nil {
			return err
		}
		slog.Debug("run scratch dir", "dir", rc.Dir)
		defer func() {
			if err := rc.Cleanup(); err != nil {
				slog.Warn("cleanup run dir", "err", err)
			}
		}()

		ctx, cancel, _ := signalctx.WithSignals(context.Background())
		defer cancel()

		gwCfg := &gateway.Config{
			Host:               cfg.Host,
			ConfigPath:         cfg.ConfigPath,
			SSHOriginalCommand: os.Getenv("SSH_ORIGINAL_COMMAND"),
			Progress:           cfg.Progress,
			Verbose:            cfg.Verbose,
			Debug:              cfg.Debug,
			Dir:                rc.Dir,
		}

		if err := gateway.Run(ctx, gwCfg); err != nil {
			return err
		}
		slog.Info("pushbackup finished successfully")
		return nil
	},
}

// Execute parses flags and runs the root command. The returned error, if
// any, should be inspected for *gateway.ExitError to pick the process exit
// code: spec.md §6 requires exit 1 for policy/configuration failures and
// rsync's own exit code otherwise.
func Execute() error { return RootCmd.Execute() }

func init() {
	f := RootCmd.Flags()
	f.StringVar(&cfg.ConfigPath, "config", "./pushbackup.conf", "Backup configuration file")
	f.BoolVar(&cfg.Debug, "debug", false, "Enable debug trace output")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	f.BoolVar(&cfg.KeepRunTmp, "keep-run-tmp", false, "Preserve the per-run scratch directory")
	f.StringVar(&cfg.Progress, "progress", "auto", "Progress display: auto|bar|none")
}
