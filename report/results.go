package report

import (
	"math"
	"slices"
	"strings"

	"github.com/nomis52/certwatch/campaign"
)

// unitBanner prefixes the separator line the runner prints before each unit.
const unitBanner = "*********"

// LatestResults is the headline result of the most recent run.
type LatestResults struct {
	RunID       string  `json:"run_id"`
	LogRef      string  `json:"log_ref"`
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// CountResults derives the headline counters from a run log. Total counts unit
// banners, so units still in flight are included; successes and failures are
// deduplicated per unit.
func CountResults(runID, logRef, log string) LatestResults {
	total := 0
	for _, line := range campaign.SplitLines(log) {
		if strings.HasPrefix(line, unitBanner) {
			total++
		}
	}
	outcomes := ParseOutcomes(log)
	r := LatestResults{
		RunID:     runID,
		LogRef:    logRef,
		Total:     total,
		Succeeded: len(outcomes.Installed),
		Failed:    len(outcomes.Failed),
	}
	r.SuccessRate = SuccessRate(r.Succeeded, r.Total)
	return r
}

// SuccessRate returns succeeded/total as a percentage rounded to one decimal.
func SuccessRate(succeeded, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(succeeded)/float64(total)*1000) / 10
}

// Unit statuses in the completed-units list.
const (
	StatusPassed    = "passed"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)

// CompletedUnit is one tested unit and its outcome.
type CompletedUnit struct {
	Unit   string `json:"unit"`
	Status string `json:"status"`
}

// CompletedUnits lists the tested units of s, failures first, then by name.
func CompletedUnits(s Summary) []CompletedUnit {
	failed := make(map[string]bool, len(s.FailedList))
	for _, u := range s.FailedList {
		failed[u] = true
	}
	installed := make(map[string]bool, len(s.InstalledList))
	for _, u := range s.InstalledList {
		installed[u] = true
	}

	units := make([]CompletedUnit, 0, len(s.TestedList))
	for _, u := range s.TestedList {
		status := StatusCompleted
		switch {
		case failed[u]:
			status = StatusFailed
		case installed[u]:
			status = StatusPassed
		}
		units = append(units, CompletedUnit{Unit: u, Status: status})
	}

	slices.SortFunc(units, func(a, b CompletedUnit) int {
		af, bf := a.Status == StatusFailed, b.Status == StatusFailed
		if af != bf {
			if af {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Unit, b.Unit)
	})
	return units
}
