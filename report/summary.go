package report

import (
	"regexp"
	"slices"
	"strings"

	"github.com/nomis52/certwatch/campaign"
)

// FailureLookback is how many lines above a failure marker are searched for the
// package= line naming the unit that failed.
const FailureLookback = 5

var (
	installedPattern = regexp.MustCompile(`(?i:operator)\s+"?([^\s"]+)"?\s+installed\b`)
	failureMarker    = "failed to install"
)

// Summary is the per-run breakdown of unit outcomes.
type Summary struct {
	RunID string `json:"run_id"`
	RunInfo
	Tested        int      `json:"tested"`
	Installed     int      `json:"installed"`
	Failed        int      `json:"failed"`
	Other         int      `json:"other"`
	TestedList    []string `json:"tested_list"`
	InstalledList []string `json:"installed_list"`
	FailedList    []string `json:"failed_list"`
	OtherList     []string `json:"other_list"`
}

// Outcomes holds the deduplicated unit names a log reports on.
type Outcomes struct {
	Installed map[string]bool
	Failed    map[string]bool
}

// ParseOutcomes scans a run log for installed and failed units.
//
// Installs are read from "operator X installed" lines. A failure marker carries no
// unit name, so the unit is taken from the nearest package= line within
// FailureLookback lines above it; a marker with no such line is ignored and its
// unit ends up classified as other.
//
// A unit that reports both outcomes counts as failed: a later install message
// does not undo a failed attempt in the same run.
func ParseOutcomes(log string) Outcomes {
	out := Outcomes{
		Installed: make(map[string]bool),
		Failed:    make(map[string]bool),
	}
	lines := campaign.SplitLines(log)
	for i, line := range lines {
		if m := installedPattern.FindStringSubmatch(line); m != nil {
			out.Installed[m[1]] = true
		}
		if !strings.Contains(strings.ToLower(line), failureMarker) {
			continue
		}
		for j := i - 1; j >= 0 && j >= i-FailureLookback; j-- {
			if unit, ok := campaign.PackageField(lines[j]); ok {
				out.Failed[unit] = true
				break
			}
		}
	}
	for unit := range out.Failed {
		delete(out.Installed, unit)
	}
	return out
}

// ParseSummary classifies the tested units of a run. tested is the list of unit
// subdirectories; log is the content of the run's output log.
func ParseSummary(runID string, tested []string, log string) Summary {
	outcomes := ParseOutcomes(log)

	testedSet := make(map[string]bool, len(tested))
	for _, u := range tested {
		if u = strings.TrimSpace(u); u != "" {
			testedSet[u] = true
		}
	}
	other := make(map[string]bool)
	for u := range testedSet {
		if !outcomes.Installed[u] && !outcomes.Failed[u] {
			other[u] = true
		}
	}

	s := Summary{
		RunID:         runID,
		RunInfo:       ParseRunID(runID),
		TestedList:    sortedKeys(testedSet),
		InstalledList: sortedKeys(outcomes.Installed),
		FailedList:    sortedKeys(outcomes.Failed),
		OtherList:     sortedKeys(other),
	}
	s.Tested = len(s.TestedList)
	s.Installed = len(s.InstalledList)
	s.Failed = len(s.FailedList)
	s.Other = len(s.OtherList)
	return s
}

// Listing is the registry view of a run.
type Listing struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Installed int    `json:"installed"`
	Failed    int    `json:"failed"`
}

// Listing returns the registry view of s.
func (s Summary) Listing() Listing {
	return Listing{
		RunID:     s.RunID,
		Total:     s.Tested,
		Installed: s.Installed,
		Failed:    s.Failed,
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
