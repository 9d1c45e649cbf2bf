package report

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// RunPrefix starts every run directory name.
	RunPrefix = "report_"

	DefaultListLimit = 10
	MaxListLimit     = 50
)

var runIDPattern = regexp.MustCompile(`^report_[A-Za-z0-9_-]+$`)

// RunInfo is the identity encoded in a run name.
type RunInfo struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// ParseRunID extracts date, time and timezone from a name such as
// report_2026-02-03_11-43-57_EST. The trailing token is the timezone and the rest
// splits into date and time; hyphens in the time become colons. Malformed names
// yield a zero RunInfo.
func ParseRunID(name string) RunInfo {
	rest, ok := strings.CutPrefix(name, RunPrefix)
	if !ok {
		return RunInfo{}
	}
	idx := strings.LastIndex(rest, "_")
	if idx < 0 {
		return RunInfo{}
	}
	stamp, tz := rest[:idx], rest[idx+1:]
	date, clock, ok := strings.Cut(stamp, "_")
	if !ok || date == "" || clock == "" || tz == "" {
		return RunInfo{}
	}
	return RunInfo{
		Date:     date,
		Time:     strings.ReplaceAll(clock, "-", ":"),
		Timezone: tz,
	}
}

// FormatRunID builds the run name for a date, a colon separated time and a
// timezone abbreviation.
func FormatRunID(date, clock, tz string) string {
	return RunPrefix + date + "_" + strings.ReplaceAll(clock, ":", "-") + "_" + tz
}

// StartedAt renders the start time encoded in info as "2006-01-02T15:04:05 TZ".
// The abbreviation is kept verbatim since it does not name a unique offset.
func StartedAt(info RunInfo) string {
	if info.Date == "" {
		return ""
	}
	t, err := dateparse.ParseIn(info.Date+" "+info.Time, time.UTC)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02T15:04:05") + " " + info.Timezone
}

// ValidRunID reports whether name is safe to use as a run directory name.
func ValidRunID(name string) bool {
	return runIDPattern.MatchString(name)
}

// ParseListing turns "ls -td <dir>/report_*" output into run names. Listing order
// is authoritative and kept as-is; entries that are not run names are dropped.
func ParseListing(raw string) []string {
	var runs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := path.Base(strings.TrimRight(line, "/"))
		if ValidRunID(name) {
			runs = append(runs, name)
		}
	}
	return runs
}

// ClampLimit parses a listing limit, defaulting to DefaultListLimit and clamping
// to [1, MaxListLimit].
func ClampLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultListLimit
	}
	return min(max(n, 1), MaxListLimit)
}
