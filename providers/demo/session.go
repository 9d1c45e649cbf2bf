package demo

import (
	"fmt"
	"strings"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/report"
)

// outcome is the simulated result of one unit.
type outcome int

const (
	outcomeInstalled outcome = iota
	outcomeFailed
	outcomeOther
)

// outcomeFor is the deterministic result of the unit at index i.
func outcomeFor(i int) outcome {
	switch {
	case i%7 == 3:
		return outcomeFailed
	case i%11 == 5:
		return outcomeOther
	default:
		return outcomeInstalled
	}
}

// stages are the terminal lines a unit goes through, in order. Each is printed
// as a block of campaign.PhaseWindow lines so only the latest stage is in the
// classifier's window.
var stages = []string{
	`level=info msg="Wait for package" package= %s`,
	`level=info msg="install operator" package= %s`,
	`level=info msg="Wait for CSV" package= %s`,
	`level=info msg="Label test resources" package= %s`,
	`level=info msg="run CNF suite" package= %s`,
	`level=info msg="Parse claim file" package= %s`,
	`level=info msg="Remove operator" package= %s`,
	`level=info msg="Wait for cleanup" package= %s`,
}

type session struct {
	running   bool
	startedAt time.Time
	// stoppedAt freezes the session; zero while it runs.
	stoppedAt time.Time
	runID     string
	units     []string
}

func (s session) elapsed(now time.Time) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	end := now
	if !s.stoppedAt.IsZero() {
		end = s.stoppedAt
	}
	return max(0, end.Sub(s.startedAt))
}

// position returns the index of the current unit and its stage. A unit index of
// len(units) means every unit is done.
func (s session) position(now time.Time, unitDuration time.Duration) (int, int) {
	elapsed := s.elapsed(now)
	unit := int(elapsed / unitDuration)
	if unit >= len(s.units) {
		return len(s.units), 0
	}
	into := elapsed % unitDuration
	stage := int(into * time.Duration(len(stages)) / unitDuration)
	return unit, stage
}

func (s session) active(now time.Time, unitDuration time.Duration) bool {
	if !s.running || !s.stoppedAt.IsZero() {
		return false
	}
	unit, _ := s.position(now, unitDuration)
	return unit < len(s.units)
}

func (s session) stop(now time.Time) session {
	s.running = false
	s.stoppedAt = now
	return s
}

// frozen is s as it stands at the end of its run, for the history.
func (s session) frozen(unitDuration time.Duration) session {
	if s.stoppedAt.IsZero() {
		s.stoppedAt = s.startedAt.Add(time.Duration(len(s.units)) * unitDuration)
	}
	s.running = false
	return s
}

// completed returns the units that have finished.
func (s session) completed(now time.Time, unitDuration time.Duration) []string {
	unit, _ := s.position(now, unitDuration)
	return s.units[:unit]
}

// scrollback is the terminal output of the current unit up to its current stage.
func (s session) scrollback(now time.Time, unitDuration time.Duration) []string {
	unit, stage := s.position(now, unitDuration)
	if unit >= len(s.units) {
		return nil
	}
	name := s.units[unit]
	lines := []string{banner(name)}
	for i := 0; i <= stage; i++ {
		lines = append(lines, fmt.Sprintf(stages[i], name))
		for j := 1; j < campaign.PhaseWindow; j++ {
			lines = append(lines, fmt.Sprintf("  ... %s %d/%d", name, j, campaign.PhaseWindow-1))
		}
	}
	return lines
}

// log is the run's output log: a block per finished unit plus the banner of the
// unit in progress.
func (s session) log(now time.Time, unitDuration time.Duration) string {
	var b strings.Builder
	done := s.completed(now, unitDuration)
	for i, name := range done {
		b.WriteString(banner(name) + "\n")
		fmt.Fprintf(&b, "level=info msg=\"Wait for package\" package= %s\n", name)
		switch outcomeFor(i) {
		case outcomeInstalled:
			fmt.Fprintf(&b, "operator %s installed\n", name)
		case outcomeFailed:
			b.WriteString("level=error msg=\"Operator failed to install\"\n")
		case outcomeOther:
			b.WriteString("level=warning msg=\"CSV did not reach phase Succeeded in time\"\n")
		}
	}
	if len(done) < len(s.units) && s.active(now, unitDuration) {
		name := s.units[len(done)]
		b.WriteString(banner(name) + "\n")
		fmt.Fprintf(&b, "level=info msg=\"Wait for package\" package= %s\n", name)
	}
	return b.String()
}

func (s session) summary(now time.Time, unitDuration time.Duration) report.Summary {
	return report.ParseSummary(s.runID, s.completed(now, unitDuration), s.log(now, unitDuration))
}

// export is the run's tabular export, empty until a unit has finished.
func (s session) export(now time.Time, unitDuration time.Duration) string {
	done := s.completed(now, unitDuration)
	if len(done) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("operator,status\n")
	for i, name := range done {
		status := report.StatusPassed
		switch outcomeFor(i) {
		case outcomeFailed:
			status = report.StatusFailed
		case outcomeOther:
			status = report.StatusCompleted
		}
		fmt.Fprintf(&b, "%s,%s\n", name, status)
	}
	return b.String()
}

func banner(name string) string {
	return "*********************** " + name + " ***********************"
}
