package gateway

import "strings"

// selection is the result of parsing the rsync path argument into the
// three pieces the orchestrator resolves independently: which space, which
// generation (by time token), and which subpath inside it.
type selection struct {
	space   string
	time    string // "" means unselected ("@latest" or no "@" at all)
	subpath string // always starts with "/"
}

// parsePath implements spec.md §4.5 step 5 exactly: split at the first "/"
// into space-and-time versus subpath, then split space-and-time at its
// first "@" into space versus time. Anything before the "@" is a literal
// space name that may itself be empty or "." (both mean "default").
func parsePath(path string) selection {
	spaceAndTime, subpath := path, "/"
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		spaceAndTime, subpath = path[:idx], path[idx:]
	}

	space, timeSel := spaceAndTime, ""
	if at := strings.IndexByte(spaceAndTime, '@'); at >= 0 {
		space, timeSel = spaceAndTime[:at], spaceAndTime[at:]
	}
	if timeSel == "@latest" {
		timeSel = ""
	}
	if space == "." || space == "" {
		space = "default"
	}

	return selection{space: space, time: timeSel, subpath: subpath}
}
