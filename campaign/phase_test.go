package campaign

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		active bool
		want   Phase
	}{
		{
			name:   "no session is idle even with markers",
			lines:  []string{"install operator foo"},
			active: false,
			want:   PhaseIdle,
		},
		{
			name:   "empty window falls through to processing",
			active: true,
			want:   PhaseProcessing,
		},
		{
			name:   "certsuite",
			lines:  []string{"TASK: run CNF suite"},
			active: true,
			want:   PhaseRunningCertsuite,
		},
		{
			name:   "installing",
			lines:  []string{"==> install operator foo"},
			active: true,
			want:   PhaseInstalling,
		},
		{
			name:   "csv wait",
			lines:  []string{"Wait for CSV to appear"},
			active: true,
			want:   PhaseWaitingForCSV,
		},
		{
			name:   "cleanup by deleted",
			lines:  []string{"subscription.operators.coreos.com \"foo\" deleted"},
			active: true,
			want:   PhaseCleanup,
		},
		{
			name:   "wait for cleanup",
			lines:  []string{"Wait for cleanup to finish"},
			active: true,
			want:   PhaseWaitingForCleanup,
		},
		{
			name:   "claim parsing",
			lines:  []string{"Parse claim file"},
			active: true,
			want:   PhaseProcessingResults,
		},
		{
			name:   "labeling",
			lines:  []string{"Label namespace"},
			active: true,
			want:   PhaseLabelingResources,
		},
		{
			name:   "wait for package",
			lines:  []string{"Wait for package manifest"},
			active: true,
			want:   PhaseWaitingForPackage,
		},
		{
			name:   "unrecognised output",
			lines:  []string{"some noise", "more noise"},
			active: true,
			want:   PhaseProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.lines, tt.active))
		})
	}
}

func TestClassify_RuleOrderWins(t *testing.T) {
	rules := PhaseRules()
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			lines := []string{rules[j].Keywords[0], rules[i].Keywords[0]}
			assert.Equal(t, rules[i].Phase, Classify(lines, true),
				"rule %d (%s) must beat rule %d (%s)", i, rules[i].Phase, j, rules[j].Phase)
		}
	}
}

func TestClassify_CSVWaitOutranksVisibleCleanup(t *testing.T) {
	lines := []string{"Wait for CSV", "Remove operator foo"}
	assert.Equal(t, PhaseWaitingForCSV, Classify(lines, true))
}

func TestClassify_OnlyTrailingWindow(t *testing.T) {
	lines := []string{"install operator foo"}
	for i := 0; i < PhaseWindow; i++ {
		lines = append(lines, "Wait for package foo")
	}
	assert.Equal(t, PhaseWaitingForPackage, Classify(lines, true))
}

func TestPhaseRules_ReturnsCopy(t *testing.T) {
	rules := PhaseRules()
	rules[0].Keywords[0] = "mutated"
	rules[0].Phase = PhaseIdle
	assert.Equal(t, "run CNF suite", PhaseRules()[0].Keywords[0])
	assert.Equal(t, PhaseRunningCertsuite, PhaseRules()[0].Phase)
}

func TestPhase_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Phase{"phase": PhaseWaitingForCSV})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"Waiting for CSV"}`, string(data))
}

func TestCurrentUnit(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"none", []string{"nothing here"}, ""},
		{"spaced marker", []string{"time=1 package= foo-operator channel=stable"}, "foo-operator"},
		{"tight marker", []string{"package=bar"}, "bar"},
		{"latest wins", []string{"package= foo", "noise", "package= bar"}, "bar"},
		{"marker without value is skipped", []string{"package= foo", "package="}, "foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentUnit(tt.lines))
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Nil(t, SplitLines("\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\n"))
	assert.Len(t, SplitLines(strings.Repeat("x\n", 3)), 3)
}
