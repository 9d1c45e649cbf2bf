package campaign

import "strings"

// PhaseWindow is the number of trailing scrollback lines the classifier looks at.
const PhaseWindow = 15

// Phase is the inferred activity of a live campaign.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunningCertsuite
	PhaseInstalling
	PhaseWaitingForCSV
	PhaseCleanup
	PhaseWaitingForCleanup
	PhaseProcessingResults
	PhaseLabelingResources
	PhaseWaitingForPackage
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseRunningCertsuite:
		return "Running certsuite"
	case PhaseInstalling:
		return "Installing"
	case PhaseWaitingForCSV:
		return "Waiting for CSV"
	case PhaseCleanup:
		return "Cleanup"
	case PhaseWaitingForCleanup:
		return "Waiting for cleanup"
	case PhaseProcessingResults:
		return "Processing results"
	case PhaseLabelingResources:
		return "Labeling resources"
	case PhaseWaitingForPackage:
		return "Waiting for package"
	default:
		return "Processing"
	}
}

// MarshalJSON implements json.Marshaler.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// PhaseRule maps a set of keywords to a phase. A rule matches when any keyword
// occurs in the window.
type PhaseRule struct {
	Keywords []string
	Phase    Phase
}

// phaseRules is ordered by priority. Several markers can be visible at once (a
// cleanup message under a CSV wait, say), so the first matching rule wins.
var phaseRules = []PhaseRule{
	{Keywords: []string{"run CNF suite", "Running"}, Phase: PhaseRunningCertsuite},
	{Keywords: []string{"install operator"}, Phase: PhaseInstalling},
	{Keywords: []string{"Wait for CSV"}, Phase: PhaseWaitingForCSV},
	{Keywords: []string{"Remove operator", "deleted"}, Phase: PhaseCleanup},
	{Keywords: []string{"Wait for cleanup"}, Phase: PhaseWaitingForCleanup},
	{Keywords: []string{"Parse claim file"}, Phase: PhaseProcessingResults},
	{Keywords: []string{"Label"}, Phase: PhaseLabelingResources},
	{Keywords: []string{"Wait for package"}, Phase: PhaseWaitingForPackage},
}

// PhaseRules returns a copy of the ordered rule table.
func PhaseRules() []PhaseRule {
	rules := make([]PhaseRule, len(phaseRules))
	for i, r := range phaseRules {
		rules[i] = PhaseRule{
			Keywords: append([]string(nil), r.Keywords...),
			Phase:    r.Phase,
		}
	}
	return rules
}

// Classify returns the phase for the trailing PhaseWindow lines of scrollback.
// Without a session the campaign is idle; with one and no matching rule it is
// PhaseProcessing.
func Classify(lines []string, active bool) Phase {
	if !active {
		return PhaseIdle
	}
	window := strings.Join(tail(lines, PhaseWindow), "\n")
	for _, rule := range phaseRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(window, kw) {
				return rule.Phase
			}
		}
	}
	return PhaseProcessing
}

// CurrentUnit returns the unit named by the last "package=" marker in lines, or ""
// when there is none.
func CurrentUnit(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if unit, ok := PackageField(lines[i]); ok {
			return unit
		}
	}
	return ""
}

// PackageField extracts the first token following "package=" in line.
// The runner prints the marker as "package= name", so leading spaces are skipped.
func PackageField(line string) (string, bool) {
	idx := strings.LastIndex(line, packageMarker)
	if idx < 0 {
		return "", false
	}
	fields := strings.Fields(line[idx+len(packageMarker):])
	if len(fields) == 0 {
		return "", false
	}
	return strings.Trim(fields[0], `"',`), true
}

const packageMarker = "package="

// SplitLines splits raw remote output into lines, dropping a trailing empty line
// and carriage returns.
func SplitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
