package gateway

import (
	"fmt"
	"strings"

	"github.com/undo-ransomware/pushbackup/internal/policy"
)

// pick is the outcome of resolving a time selector and subpath against a
// target's enumerated generations, for the read-only modes.
type pick struct {
	names         []string // generation directory names, oldest first
	appendSubpath bool     // false only for list+time with subpath "/"
	info          string   // "selecting backup <name>" when time matched >1
}

// selectGenerations implements spec.md §4.5 step 9. names must be
// Enumerate's ascending output.
func selectGenerations(names []string, sel selection, mode policy.Mode, quiet, verbose bool) (pick, error) {
	if sel.time == "" {
		if len(names) == 0 {
			return pick{}, fmt.Errorf("no backup generations exist yet")
		}
		return pick{names: []string{names[len(names)-1]}, appendSubpath: true}, nil
	}

	var matches []string
	for _, n := range names {
		if strings.HasPrefix(n, sel.time) {
			matches = append(matches, n)
		}
	}

	switch mode {
	case policy.List:
		if sel.subpath == "/" {
			return pick{names: matches, appendSubpath: false}, nil
		}
		if len(matches) != 1 {
			return pick{}, fmt.Errorf("time selector %q matched %d generations, need exactly one for subpath %q", sel.time, len(matches), sel.subpath)
		}
		return pick{names: matches, appendSubpath: true}, nil
	default: // restore, verify
		if len(matches) == 0 {
			return pick{}, fmt.Errorf("no generation matching %q", sel.time)
		}
		chosen := matches[0]
		info := ""
		if len(matches) > 1 && (!quiet || verbose) {
			info = fmt.Sprintf("selecting backup %s", chosen)
		}
		return pick{names: []string{chosen}, appendSubpath: true, info: info}, nil
	}
}
