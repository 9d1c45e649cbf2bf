package cron

import (
	"fmt"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/config"
)

// TriggerSpec is a validated cron entry.
type TriggerSpec struct {
	CronSpec string
	// Selection is nil for the default campaign.
	Selection *campaign.Selection
}

// ParseTriggerSpecs validates the configured cron entries.
//
// Returns an error if:
//   - Any schedule is not a valid 5 field cron expression
//   - Any non-empty selection names no units
func ParseTriggerSpecs(triggers []config.CronTrigger) ([]TriggerSpec, error) {
	specs := make([]TriggerSpec, 0, len(triggers))
	for i, t := range triggers {
		if _, err := parseSchedule(t.Schedule); err != nil {
			return nil, fmt.Errorf("cron trigger %d: %w", i, err)
		}

		spec := TriggerSpec{CronSpec: t.Schedule}
		if t.Selection != "" {
			sel, err := campaign.ParseSelection(t.Selection)
			if err != nil {
				return nil, fmt.Errorf("cron trigger %d: invalid selection %q: %w", i, t.Selection, err)
			}
			spec.Selection = &sel
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// describe formats a trigger for logs.
func (s TriggerSpec) describe() string {
	if s.Selection == nil {
		return "default campaign"
	}
	return fmt.Sprintf("%d operators in %d catalogs", s.Selection.UnitCount(), len(s.Selection.Catalogs))
}
