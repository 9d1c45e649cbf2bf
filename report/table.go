package report

import (
	"fmt"
	"strings"

	"github.com/nomis52/certwatch/campaign"
)

// Table is one run's CSV export. Found is false when the run has no export or it
// could not be fetched.
type Table struct {
	RunID string
	Text  string
	Found bool
}

// Combine merges the exports of several runs. The header comes from the first run
// that has an export, which is not necessarily the first run requested; data rows
// of every run follow in run order without deduplication. Runs without an export
// are skipped, and when none has one the result is campaign.ErrNotFound.
func Combine(tables []Table) (string, error) {
	var (
		out       []string
		haveRows  bool
		requested = make([]string, 0, len(tables))
	)
	for _, t := range tables {
		requested = append(requested, t.RunID)
		if !t.Found {
			continue
		}
		lines := nonBlankLines(t.Text)
		if len(lines) == 0 {
			continue
		}
		if !haveRows {
			out = append(out, lines[0])
			haveRows = true
		}
		out = append(out, lines[1:]...)
	}
	if !haveRows {
		return "", fmt.Errorf("no CSV export in runs %v: %w", requested, campaign.ErrNotFound)
	}
	return strings.Join(out, "\n") + "\n", nil
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range campaign.SplitLines(text) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
