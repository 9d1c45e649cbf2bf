package campaign

import (
	"strconv"
	"strings"
)

// Progress counts units for the run a campaign is writing to.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Remaining int `json:"remaining"`
}

// ComputeProgress derives progress from a run's manifest and the number of entries
// a "find <run> -maxdepth 1 -type d" listing produced. The listing includes the run
// directory itself, which is not a unit.
//
// Completed may exceed Total when units leave extra directories behind; Remaining
// floors at zero but Completed is reported unchanged.
func ComputeProgress(manifest string, dirCount int) Progress {
	total := CountManifest(manifest)
	completed := max(0, dirCount-1)
	return Progress{
		Total:     total,
		Completed: completed,
		Remaining: max(0, total-completed),
	}
}

// CountManifest returns the number of non-blank lines in a manifest.
func CountManifest(manifest string) int {
	return len(ManifestUnits(manifest))
}

// ManifestUnits returns the unit names listed in a manifest, in file order.
func ManifestUnits(manifest string) []string {
	var units []string
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			units = append(units, line)
		}
	}
	return units
}

// ParseCount parses the first line of a remote count such as "wc -l" output.
// Anything unparseable counts as zero.
func ParseCount(raw string) int {
	first, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	n, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0
	}
	return n
}
