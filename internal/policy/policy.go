// Package policy implements the per-mode rsync option policy: declarative
// allow/deny/require rules with aliases, hints, and hard/soft severity,
// producing ordered diagnostics and a sanitized argument vector.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/undo-ransomware/pushbackup/internal/rsyncproto"
)

// Mode is one of the four rsync invocation modes the gateway recognizes.
type Mode string

const (
	Backup  Mode = "backup"
	Restore Mode = "restore"
	Verify  Mode = "verify"
	List    Mode = "list"
)

var allModes = []Mode{Backup, Restore, Verify, List}

// specialOptions are accepted in any mode without being registered: they
// drive mode selection and quiet/verbose display, not backup content.
var specialOptions = []string{"--sender", "--list-only", "-q", "--quiet", "-v", "--verbose", "-n", "--dry-run"}

// Verdict is the base classification a rule assigns to an option.
type Verdict int

const (
	Allow Verdict = iota
	Deny
	Require
)

type rule struct {
	verdict Verdict
	hard    bool
	alias   string
	hint    string
}

// Engine holds the per-mode rule table. Register rules with Add (or the
// Allow/Deny/Require/Discourage/Recommend convenience methods) before
// calling Classify.
type Engine struct {
	// byName maps a canonical option name to its rule for each of the four
	// modes (nil entry = unregistered for that mode). A single map keyed
	// by name, rather than four parallel per-mode maps, since one option's
	// rules across modes are almost always declared together.
	byName map[string]*[4]*rule
}

// NewEngine returns an empty policy engine.
func NewEngine() *Engine {
	return &Engine{byName: make(map[string]*[4]*rule)}
}

func modeIndex(m Mode) int {
	switch m {
	case Backup:
		return 0
	case Restore:
		return 1
	case Verify:
		return 2
	case List:
		return 3
	default:
		panic("policy: unknown mode " + string(m))
	}
}

// ModeEntry is one (modes, verdict, hint) declaration, as registered by Add.
// A nil/empty Modes means "all four modes".
type ModeEntry struct {
	Modes   []Mode
	Verdict string // "allow", "deny", "require", "discourage", "recommend"
	Hint    string
}

// Add registers entries for every name in names. A name may embed a display
// alias after an internal space ("-a --archive" means the canonical option
// is "-a", grouped under the message key "-a / --archive"). If alias is
// non-empty, it overrides the per-name embedded alias for every name in this
// call (used when several distinct options share one display group, e.g.
// the whole -rlptgoD archive bundle).
func (e *Engine) Add(entries []ModeEntry, alias string, names ...string) {
	for _, name := range names {
		displayAlias := name
		if alias != "" {
			displayAlias = alias
		}
		displayAlias = joinAlias(displayAlias)

		canonical := name
		if sp := strings.IndexByte(name, ' '); sp >= 0 {
			canonical = name[:sp]
		}

		for _, entry := range entries {
			verdict, hard := resolveVerdict(entry.Verdict)
			modes := entry.Modes
			if len(modes) == 0 {
				modes = allModes
			}
			slot := e.byName[canonical]
			if slot == nil {
				slot = &[4]*rule{}
				e.byName[canonical] = slot
			}
			for _, m := range modes {
				slot[modeIndex(m)] = &rule{verdict: verdict, hard: hard, alias: displayAlias, hint: entry.Hint}
			}
		}
	}
}

// joinAlias turns "-a --archive" into "-a / --archive"; a name with no
// embedded space is returned unchanged.
func joinAlias(s string) string {
	if sp := strings.IndexByte(s, ' '); sp >= 0 {
		return s[:sp] + " / " + s[sp+1:]
	}
	return s
}

func resolveVerdict(v string) (Verdict, bool) {
	switch v {
	case "allow":
		return Allow, true
	case "deny":
		return Deny, true
	case "require":
		return Require, true
	case "discourage":
		return Deny, false
	case "recommend":
		return Require, false
	default:
		panic("policy: illegal verdict " + v)
	}
}

func (e *Engine) addAll(verdict string, hint string, names []string) {
	e.Add([]ModeEntry{{Verdict: verdict, Hint: hint}}, "", names...)
}

// Allow registers names as allowed in every mode.
func (e *Engine) Allow(hint string, names ...string) { e.addAll("allow", hint, names) }

// Deny registers names as hard-denied in every mode.
func (e *Engine) Deny(hint string, names ...string) { e.addAll("deny", hint, names) }

// Require registers names as hard-required in every mode.
func (e *Engine) Require(hint string, names ...string) { e.addAll("require", hint, names) }

// Discourage registers names as soft-denied (WARNING, not ERROR) in every mode.
func (e *Engine) Discourage(hint string, names ...string) { e.addAll("discourage", hint, names) }

// Recommend registers names as soft-required (WARNING, not ERROR) in every mode.
func (e *Engine) Recommend(hint string, names ...string) { e.addAll("recommend", hint, names) }

// Severity distinguishes a hard failure from an advisory.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}
	return "WARNING"
}

// Result is the outcome of classifying one parsed command.
type Result struct {
	Mode     Mode
	Messages []string // formatted, ERROR group before WARNING group, each group sorted by key
	Argv     []string // nil if any ERROR was emitted
	Path     string    // "" if any ERROR was emitted
}

// SelectMode derives the operating mode from the observed options, per the
// priority order: --list-only, then -n/--dry-run, then --sender, else backup.
func SelectMode(opts rsyncproto.Options) Mode {
	switch {
	case opts.Has("--list-only"):
		return List
	case opts.HasAny("-n", "--dry-run"):
		return Verify
	case opts.Has("--sender"):
		return Restore
	default:
		return Backup
	}
}

// Classify selects the mode for cmd and applies the registered rule table,
// returning sorted diagnostics and, absent any ERROR, a sanitized argv.
func (e *Engine) Classify(cmd *rsyncproto.Command) *Result {
	mode := SelectMode(cmd.Opts)
	idx := modeIndex(mode)

	errors := make(map[string]string)
	warnings := make(map[string]string)

	for name, slot := range e.byName {
		r := slot[idx]
		if r == nil {
			continue
		}
		present := cmd.Opts.Has(name)
		switch {
		case r.verdict == Require && !present:
			if r.hard {
				errors[r.alias] = formatMsg("must use", r.alias, r.hint)
			} else {
				warnings[r.alias] = formatMsg("consider using", r.alias, r.hint)
			}
		case r.verdict == Deny && present:
			if r.hard {
				errors[r.alias] = formatMsg("do not use", r.alias, r.hint)
			} else {
				warnings[r.alias] = formatMsg("avoid using", r.alias, r.hint)
			}
		}
	}

	for name := range cmd.Opts {
		if isSpecial(name) || strings.HasPrefix(name, "-e") {
			// The -e feature bundle is parsed, never registered: its value
			// varies per invocation, so it can never appear in the rule table.
			continue
		}
		slot := e.byName[name]
		if slot == nil || slot[idx] == nil {
			errors[name] = formatMsg("unknown option", name, "")
		}
	}

	if cmd.Opts.Has("-r") && !cmd.IncRecursive {
		warnings["--inc-recursive"] = formatMsg("incremental recursion not enabled, consider using", "--inc-recursive", "")
	}

	if cmd.MalformedEBundle != "" {
		errors["-e"] = fmt.Sprintf("strange -e options string %s", cmd.MalformedEBundle)
	}

	res := &Result{Mode: mode}
	res.Messages = append(res.Messages, sortedValues(errors, "ERROR")...)
	res.Messages = append(res.Messages, sortedValues(warnings, "WARNING")...)

	if len(errors) > 0 {
		return res
	}
	res.Argv = buildArgv(cmd.Opts)
	res.Path = cmd.Path
	return res
}

func isSpecial(name string) bool {
	for _, s := range specialOptions {
		if s == name {
			return true
		}
	}
	return false
}

func formatMsg(verb, key, hint string) string {
	if hint != "" {
		return fmt.Sprintf("%s %s (%s)", verb, key, hint)
	}
	return fmt.Sprintf("%s %s", verb, key)
}

func sortedValues(m map[string]string, sev string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, sev+" "+m[k])
	}
	return out
}

func buildArgv(opts rsyncproto.Options) []string {
	names := make([]string, 0, len(opts))
	for n := range opts {
		names = append(names, n)
	}
	sort.Strings(names)

	argv := []string{"rsync", "--server"}
	for _, name := range names {
		values := append([]*string(nil), opts[name]...)
		sort.Slice(values, func(i, j int) bool {
			if values[i] == nil || values[j] == nil {
				return false
			}
			return *values[i] < *values[j]
		})
		for _, v := range values {
			if v == nil {
				argv = append(argv, name)
			} else {
				argv = append(argv, name+*v)
			}
		}
	}
	return argv
}
