// Package rsyncstats parses the human-readable output of rsync --stats,
// captured from one backup/restore/verify subprocess's stderr, and renders
// it back into a log-friendly summary.
package rsyncstats

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Stats aggregates one rsync invocation's --stats report.
type Stats struct {
	NumFiles             int64
	CreatedFiles         int64
	CreatedReg           int64
	CreatedDir           int64
	DeletedFiles         int64
	DeletedReg           int64
	DeletedDir           int64
	RegTransferred       int64
	TotalFileSize        int64
	TotalTransferredSize int64
	LiteralData          int64
	MatchedData          int64
	RegFiles             int64
	DirFiles             int64
	LinkFiles            int64
	FileListSize         int64
	FileListGenSeconds   float64
	BytesSent            int64
	BytesReceived        int64
}

var (
	reNumFiles         = regexp.MustCompile(`^\s*Number of files:\s+([0-9,]+)(?:\s*\(([^)]+)\))?`)
	reCreatedFiles     = regexp.MustCompile(`^\s*Number of created files:\s+([0-9,]+)(?:\s*\(([^)]+)\))?`)
	reDeletedFiles     = regexp.MustCompile(`^\s*Number of deleted files:\s+([0-9,]+)(?:\s*\(([^)]+)\))?`)
	reRegTransferred   = regexp.MustCompile(`^\s*Number of regular files transferred:\s+([0-9,]+)`)
	reTotalFileSize    = regexp.MustCompile(`^\s*Total file size:\s+([0-9.,A-Za-z]+)`)
	reTotalTransferred = regexp.MustCompile(`^\s*Total transferred file size:\s+([0-9.,A-Za-z]+)`)
	reLiteral          = regexp.MustCompile(`^\s*Literal data:\s+([0-9.,A-Za-z]+)`)
	reMatched          = regexp.MustCompile(`^\s*Matched data:\s+([0-9.,A-Za-z]+)`)
	reBytesSent        = regexp.MustCompile(`^\s*Total bytes sent:\s+([0-9.,A-Za-z]+)`)
	reFileListSize     = regexp.MustCompile(`^\s*File list size:\s+([0-9.,A-Za-z]+)`)
	reFileListGenTime  = regexp.MustCompile(`^\s*File list generation time:\s+([0-9.,]+) seconds?`)
	reBytesReceived    = regexp.MustCompile(`^\s*Total bytes received:\s+([0-9.,A-Za-z]+)`)
)

// Parse scans rsync's captured stderr for a --stats block. Lines that don't
// match any known field are ignored, so Parse is safe to run over the full
// stderr capture even when --stats wasn't requested (it then returns a zero
// Stats).
func Parse(sc *bufio.Scanner) (Stats, error) {
	var s Stats
	for sc.Scan() {
		line := sc.Text()
		switch {
		case reNumFiles.MatchString(line):
			m := reNumFiles.FindStringSubmatch(line)
			s.NumFiles = toInt(m[1])
			s.RegFiles, s.DirFiles, s.LinkFiles = splitCategories(m, "reg", "dir", "link", "sym")
		case reCreatedFiles.MatchString(line):
			m := reCreatedFiles.FindStringSubmatch(line)
			s.CreatedFiles = toInt(m[1])
			reg, dir, _ := splitCategories(m, "reg", "dir", "", "")
			s.CreatedReg, s.CreatedDir = reg, dir
		case reDeletedFiles.MatchString(line):
			m := reDeletedFiles.FindStringSubmatch(line)
			s.DeletedFiles = toInt(m[1])
			reg, dir, _ := splitCategories(m, "reg", "dir", "", "")
			s.DeletedReg, s.DeletedDir = reg, dir
		case reRegTransferred.MatchString(line):
			s.RegTransferred = toInt(reRegTransferred.FindStringSubmatch(line)[1])
		case reTotalFileSize.MatchString(line):
			s.TotalFileSize = toBytes(reTotalFileSize.FindStringSubmatch(line)[1])
		case reTotalTransferred.MatchString(line):
			s.TotalTransferredSize = toBytes(reTotalTransferred.FindStringSubmatch(line)[1])
		case reLiteral.MatchString(line):
			s.LiteralData = toBytes(reLiteral.FindStringSubmatch(line)[1])
		case reMatched.MatchString(line):
			s.MatchedData = toBytes(reMatched.FindStringSubmatch(line)[1])
		case reBytesSent.MatchString(line):
			s.BytesSent = toBytes(reBytesSent.FindStringSubmatch(line)[1])
		case reFileListSize.MatchString(line):
			s.FileListSize = toBytes(reFileListSize.FindStringSubmatch(line)[1])
		case reFileListGenTime.MatchString(line):
			v := reFileListGenTime.FindStringSubmatch(line)[1]
			f, _ := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
			if f > s.FileListGenSeconds {
				s.FileListGenSeconds = f
			}
		case reBytesReceived.MatchString(line):
			s.BytesReceived = toBytes(reBytesReceived.FindStringSubmatch(line)[1])
		}
	}
	return s, sc.Err()
}

// splitCategories reads "reg: 16, dir: 2, link: 1"-style parenthesized
// breakdowns out of a regex match's optional second group.
func splitCategories(m []string, regKey, dirKey, linkKey, altLinkKey string) (reg, dir, link int64) {
	if len(m) <= 2 || m[2] == "" {
		return 0, 0, 0
	}
	for _, p := range strings.Split(m[2], ",") {
		kv := strings.SplitN(strings.TrimSpace(p), ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := toInt(kv[1])
		switch key {
		case regKey, "regular files", "regular", "file", "files":
			reg = val
		case dirKey, "directories":
			dir = val
		case linkKey, altLinkKey:
			if linkKey != "" {
				link = val
			}
		}
	}
	return reg, dir, link
}

func toInt(s string) int64 {
	v, _ := strconv.ParseInt(cleanNum(s), 10, 64)
	return v
}

// toBytes converts size strings like "1234", "2.3K", "1.2 MiB" to bytes.
func toBytes(s string) int64 {
	if s == "" {
		return 0
	}
	s = strings.TrimSpace(s)

	hasUnit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != ',' && c != ' ' {
			hasUnit = true
			break
		}
	}
	if hasUnit {
		return parseHumanSize(s)
	}
	return toInt(s)
}

func parseHumanSize(s string) int64 {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", "")

	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
	}
	numPart := s[:i]
	unitPart := strings.ToUpper(s[i:])

	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0
	}

	var multiplier float64 = 1
	switch {
	case strings.HasPrefix(unitPart, "K"):
		multiplier = 1 << 10
	case strings.HasPrefix(unitPart, "M"):
		multiplier = 1 << 20
	case strings.HasPrefix(unitPart, "G"):
		multiplier = 1 << 30
	case strings.HasPrefix(unitPart, "T"):
		multiplier = 1 << 40
	case strings.HasPrefix(unitPart, "P"):
		multiplier = 1 << 50
	}
	return int64(f * multiplier)
}

func cleanNum(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
