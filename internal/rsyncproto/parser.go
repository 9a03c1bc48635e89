// Package rsyncproto parses the rsync server-protocol command line a remote
// peer attempts to execute (as delivered verbatim in SSH_ORIGINAL_COMMAND):
// a space-delimited, unescaped option list terminated by the ". " sentinel
// and a trailing source path.
package rsyncproto

import (
	"fmt"
	"regexp"
	"strings"
)

const serverPrefix = "rsync --server "

var incRecursiveBundle = regexp.MustCompile(`^-e\d*\.\d*(i?).*$`)

// Options is an ordered multimap from option name to its values. A nil
// element means the option carries no value (a bare flag); duplicates are
// preserved in insertion order.
type Options map[string][]*string

// Has reports whether name was observed at all.
func (o Options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

// HasAny reports whether any of names was observed.
func (o Options) HasAny(names ...string) bool {
	for _, n := range names {
		if o.Has(n) {
			return true
		}
	}
	return false
}

// Command is the result of parsing one rsync server-protocol invocation.
type Command struct {
	Opts         Options
	Path         string
	IncRecursive bool // derived from the "i" flag in the -e feature bundle

	// MalformedEBundle holds the raw "-e..." token when present but not of
	// the expected "-e<digits>.<digits>(i?)..." shape. Parsing still
	// succeeds (the bundle is recorded in Opts like any other option, and
	// the rest of the command line keeps parsing): the policy layer turns
	// this into an ERROR diagnostic rather than Parse refusing the whole
	// command outright.
	MalformedEBundle string
}

// ParseError marks a fatal parse failure: the command line could not be
// interpreted as a well-formed rsync --server invocation at all.
type ParseError struct{ Msg string }

func (e *ParseError) Error() string { return e.Msg }

func fatalf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// Parse tokenizes cmdline. Everything before a literal "rsync --server " is
// shell access and is refused outright; everything after the two-character
// ". " sentinel becomes Path, verbatim.
func Parse(cmdline string) (*Command, error) {
	if !strings.HasPrefix(cmdline, serverPrefix) {
		return nil, fatalf("shell access not allowed, use rsync")
	}

	rest := cmdline[len(serverPrefix):]
	opts := make(Options)
	incRecursive := false
	malformedEBundle := ""

	for strings.HasPrefix(rest, "-") {
		switch {
		case strings.HasPrefix(rest, "--"):
			idx := strings.IndexByte(rest, ' ')
			if idx < 0 {
				return nil, fatalf("truncated option %q, missing source sentinel", rest)
			}
			tok := rest[:idx]
			rest = rest[idx+1:]

			var name string
			var value *string
			if eq := strings.IndexByte(tok, '='); eq >= 0 {
				name = tok[:eq+1]
				v := tok[eq+1:]
				value = &v
			} else {
				name = tok
			}
			opts[name] = append(opts[name], value)

		case strings.HasPrefix(rest, "-e"):
			idx := strings.IndexByte(rest, ' ')
			if idx < 0 {
				return nil, fatalf("truncated -e option %q, missing source sentinel", rest)
			}
			bundle := rest[:idx]
			rest = rest[idx+1:]

			m := incRecursiveBundle.FindStringSubmatch(bundle)
			if m == nil {
				// Keep going, same as a merely-unregistered option would:
				// the policy layer reports this as an ERROR against the
				// mode's message set instead of the whole command being
				// refused before it can even be classified.
				malformedEBundle = bundle
			} else {
				incRecursive = m[1] == "i"
			}
			opts[bundle] = append(opts[bundle], nil)

		case strings.HasPrefix(rest, "- "):
			// Last short option of a cluster, rsync's own terminator.
			rest = rest[2:]

		default:
			if len(rest) < 2 {
				return nil, fatalf("truncated short option %q, missing source sentinel", rest)
			}
			name := rest[:2]
			rest = "-" + rest[2:]
			opts[name] = append(opts[name], nil)
		}
	}

	if !strings.HasPrefix(rest, ". ") {
		return nil, fatalf(`rsync --server must give source as ".", but found %q`, rest)
	}

	return &Command{Opts: opts, Path: rest[2:], IncRecursive: incRecursive, MalformedEBundle: malformedEBundle}, nil
}

// IsQuiet reports whether -q or --quiet was observed.
func (c *Command) IsQuiet() bool { return c.Opts.HasAny("-q", "--quiet") }

// IsVerbose reports whether -v or --verbose was observed.
func (c *Command) IsVerbose() bool { return c.Opts.HasAny("-v", "--verbose") }
