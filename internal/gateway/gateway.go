package gateway

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/undo-ransomware/pushbackup/internal/config"
	"github.com/undo-ransomware/pushbackup/internal/debug"
	"github.com/undo-ransomware/pushbackup/internal/generation"
	"github.com/undo-ransomware/pushbackup/internal/lock"
	"github.com/undo-ransomware/pushbackup/internal/policy"
	"github.com/undo-ransomware/pushbackup/internal/process"
	"github.com/undo-ransomware/pushbackup/internal/progress"
	"github.com/undo-ransomware/pushbackup/internal/rsyncproto"
	"github.com/undo-ransomware/pushbackup/internal/rsyncstats"
	"github.com/undo-ransomware/pushbackup/internal/util/disk"
	"github.com/undo-ransomware/pushbackup/internal/util/fs"
)

// diskSafetyMarginBytes is the free-space floor that triggers a WARNING
// before reusing or creating temp/ in backup mode. Never fatal: disk
// pressure is the operator's problem, not a reason to refuse a backup that
// might still partially succeed.
const diskSafetyMarginBytes = 1 << 30 // 1 GiB

// rsyncKillGrace is how long the watchdog waits after SIGTERM before
// SIGKILLing a surviving rsync child once the SSH channel dies.
const rsyncKillGrace = 5 * time.Second

// ExitError carries the process exit code the CLI entry point must use:
// 1 for policy/configuration/selection failures, or rsync's own exit code
// when rsync ran and failed. A nil error from Run means exit 0.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("gateway: exit %d", e.Code) }

func fail(code int) error { return &ExitError{Code: code} }

// Orchestrator carries state threaded across one session's steps.
type Orchestrator struct {
	cfg *Config

	cmd    *rsyncproto.Command
	result *policy.Result
	sel    selection

	target       string
	scoped       *config.Scoped
	keepCount    int
	keepDuration time.Duration
}

// Run executes one gatekeeper session end to end, per spec.md §4.5.
func Run(ctx context.Context, cfg *Config) error {
	o := &Orchestrator{cfg: cfg}
	return o.run(ctx)
}

func (o *Orchestrator) run(ctx context.Context) error {
	if o.cfg.SSHOriginalCommand == "" {
		fmt.Fprintln(os.Stderr, "SSH not configured: SSH_ORIGINAL_COMMAND is unset")
		return fail(1)
	}

	if err := o.parseAndClassify(); err != nil {
		return err
	}

	if err := o.resolvePath(); err != nil {
		return err
	}

	if err := o.resolveTarget(); err != nil {
		return err
	}

	o.resolveRetention()

	if o.result.Mode == policy.Backup {
		return o.runBackup(ctx)
	}
	return o.runRead(ctx)
}

// parseAndClassify is steps 2–4: register the policy, tokenize the forced
// command, print diagnostics, and abort on any ERROR.
func (o *Orchestrator) parseAndClassify() error {
	engine := policy.DefaultEngine()

	cmd, err := rsyncproto.Parse(o.cfg.SSHOriginalCommand)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return fail(1)
	}
	o.cmd = cmd

	res := engine.Classify(cmd)
	o.result = res
	for _, msg := range res.Messages {
		fmt.Fprintln(os.Stderr, msg)
	}
	if res.Argv == nil {
		return fail(1)
	}
	return nil
}

// resolvePath is step 5.
func (o *Orchestrator) resolvePath() error {
	o.sel = parsePath(o.result.Path)
	if o.result.Mode == policy.Backup && (o.sel.time != "" || o.sel.subpath != "/") {
		fmt.Fprintln(os.Stderr, "ERROR backup mode does not accept a time selector or subpath")
		return fail(1)
	}
	return nil
}

// resolveTarget is step 6: load the config file, bind (host, space), resolve
// the target directory template, and create it if the space is declared.
func (o *Orchestrator) resolveTarget() error {
	parser := config.New()
	parser.AddString("target", "")
	parser.AddInt("keep-count", 0)
	parser.AddDuration("keep-duration", 0)
	parser.AddDuration("backup-cooldown", 0)

	path := o.cfg.ConfigPath
	if path == "" {
		path = "./pushbackup.conf"
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR reading config %s: %v\n", path, err)
		return fail(1)
	}
	defer f.Close()
	if err := parser.Parse(f); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return fail(1)
	}

	scoped, err := parser.Bind(o.cfg.Host, o.sel.space)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return fail(1)
	}
	o.scoped = scoped

	target := scoped.String("target")
	target = strings.ReplaceAll(target, "{HOST}", o.cfg.Host)
	target = strings.ReplaceAll(target, "{SPACE}", o.sel.space)
	if target == "" {
		fmt.Fprintln(os.Stderr, "ERROR backup space not configured")
		return fail(1)
	}
	o.target = target

	if _, err := os.Stat(target); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
			return fail(1)
		}
		if !parser.HasSection(o.cfg.Host, o.sel.space) {
			fmt.Fprintln(os.Stderr, "ERROR backup space not configured")
			return fail(1)
		}
		if err := fs.MkdirP(target); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR creating target: %v\n", err)
			return fail(1)
		}
	}
	return nil
}

// resolveRetention is step 7.
func (o *Orchestrator) resolveRetention() {
	countSet := o.scoped.IsSet("keep-count")
	durSet := o.scoped.IsSet("keep-duration")

	var keepCount int
	var keepDuration time.Duration
	switch {
	case !countSet && !durSet:
		keepCount = generation.DefaultKeepCount
		keepDuration = 0
	default:
		keepCount = 1
		if countSet {
			keepCount = o.scoped.Int("keep-count")
		}
		if durSet {
			keepDuration = o.scoped.Duration("keep-duration")
		}
	}

	clamped, wasClamped := generation.ClampKeepCount(keepCount)
	if wasClamped {
		fmt.Fprintf(os.Stderr, "WARNING keep-count clamped to %d\n", clamped)
	}
	o.keepCount = clamped
	o.keepDuration = keepDuration
}

// runBackup is steps 8, 10, 13 for backup mode.
func (o *Orchestrator) runBackup(ctx context.Context) error {
	lk := lock.New(o.target)
	ok, err := lk.TryLock()
	switch {
	case err != nil:
		slog.Warn("lock: proceeding without it", "target", o.target, "err", err)
	case !ok:
		fmt.Fprintln(os.Stderr, "WARNING another backup is already running for this target, skipping")
		return nil
	default:
		defer func() { _ = lk.Unlock() }()
	}

	now := o.cfg.now()
	names, err := generation.Enumerate(o.target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR listing generations: %v\n", err)
		return fail(1)
	}
	kept, removed, err := generation.Prune(o.target, names, o.keepCount, o.keepDuration, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR pruning: %v\n", err)
		return fail(1)
	}
	for _, r := range removed {
		slog.Info("pruned generation", "name", r)
	}
	prev := generation.SelectPrevious(kept)

	if sp, err := disk.FreeBytes(o.target); err == nil && sp.Free < diskSafetyMarginBytes {
		fmt.Fprintf(os.Stderr, "WARNING low free space on %s: %d bytes\n", o.target, sp.Free)
	}

	tempPath, err := generation.CreateTemp(o.target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return fail(1)
	}

	argv := append([]string(nil), o.result.Argv...)
	if prev != "" {
		argv = append(argv, "--link-dest="+filepath.Join(o.target, prev))
	}
	argv = append(argv, "--partial-dir=.rsync-partial", "--delete-excluded", ".", tempPath)

	exitCode, stderrTail, dur, err := o.exec(ctx, argv)
	if err != nil {
		return err
	}
	o.captureDiagnostics(stderrTail, dur)

	if exitCode != 0 && exitCode != 24 {
		return fail(exitCode)
	}
	debug.StopIf("before-publish")
	name, err := generation.Publish(o.target, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR publishing generation: %v\n", err)
		return fail(1)
	}
	slog.Info("backup published", "generation", name)
	return nil
}

// runRead is steps 9, 11, 12, 13 for restore, verify, and list modes.
func (o *Orchestrator) runRead(ctx context.Context) error {
	names, err := generation.Enumerate(o.target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR listing generations: %v\n", err)
		return fail(1)
	}

	p, err := selectGenerations(names, o.sel, o.result.Mode, o.cmd.IsQuiet(), o.cmd.IsVerbose())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return fail(1)
	}
	if p.info != "" {
		fmt.Fprintf(os.Stderr, "INFO %s\n", p.info)
	}

	var sources []string
	for _, name := range p.names {
		src := filepath.Join(o.target, name)
		if p.appendSubpath {
			src += o.sel.subpath
		}
		sources = append(sources, src)
	}

	if o.result.Mode == policy.Restore && p.appendSubpath && o.sel.subpath != "/" && !strings.HasSuffix(o.sel.subpath, "/") && !o.cmd.IsQuiet() {
		if info, statErr := os.Stat(sources[0]); statErr == nil && info.IsDir() {
			fmt.Fprintln(os.Stderr, "WARNING restoring a directory without a trailing slash in the requested subpath")
		}
	}

	argv := append([]string(nil), o.result.Argv...)
	argv = append(argv, ".")
	argv = append(argv, sources...)

	exitCode, stderrTail, dur, err := o.exec(ctx, argv)
	if err != nil {
		return err
	}
	o.captureDiagnostics(stderrTail, dur)

	if exitCode != 0 && exitCode != 24 {
		return fail(exitCode)
	}
	return nil
}

// exec re-invokes rsync with the final argv (which still carries the
// literal "rsync" program name as argv[0], per the sanitized-argv
// convention); it is stripped before the real exec call.
func (o *Orchestrator) exec(ctx context.Context, argv []string) (exitCode int, stderrTail []byte, dur time.Duration, err error) {
	args := argv[1:] // drop the literal "rsync" placeholder

	process.ReapOnCancel(ctx, rsyncKillGrace)

	showBar := o.cfg.Progress == "bar" || (o.cfg.Progress == "auto" && o.cfg.Verbose)
	var bar *progress.Bar
	var tee io.Writer
	if showBar && (o.result.Mode == policy.Backup || o.result.Mode == policy.Restore) {
		bar = progress.New(o.target)
		tee = bar.Writer()
	}

	res, runErr := process.RunPassthroughTee(ctx, tee, o.cfg.rsyncBin(), args...)
	if bar != nil {
		bar.Done()
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR running rsync: %v\n", runErr)
		return 0, nil, 0, fail(1)
	}
	return res.ExitCode, res.Stderr, res.Duration, nil
}

// captureDiagnostics logs an rsync --stats summary when the client asked for
// one, and, when running with --debug, persists the full captured stderr
// tail under the run's scratch directory for post-mortem inspection.
func (o *Orchestrator) captureDiagnostics(stderrTail []byte, dur time.Duration) {
	if o.cmd.Opts.Has("--stats") && len(stderrTail) > 0 {
		st, err := rsyncstats.Parse(bufio.NewScanner(bytes.NewReader(stderrTail)))
		if err != nil {
			slog.Warn("parsing rsync stats", "err", err)
		} else {
			slog.Info("rsync stats", "summary", st.Summary(dur))
		}
	}

	if o.cfg.Debug && o.cfg.Dir != "" && len(stderrTail) > 0 {
		path := filepath.Join(o.cfg.Dir, "rsync-stderr.log")
		if err := os.WriteFile(path, stderrTail, 0o644); err != nil {
			slog.Warn("writing debug stderr tail", "path", path, "err", err)
			return
		}
		slog.Debug("wrote rsync stderr tail", "path", path)
	}
}
