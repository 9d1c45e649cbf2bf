package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nomis52/certwatch/campaign"
	"github.com/nomis52/certwatch/config"
)

// Starter starts campaigns.
type Starter interface {
	Start(ctx context.Context, sel *campaign.Selection) (campaign.StartResult, error)
}

// CronTriggerManager owns one CronTrigger per configured entry.
type CronTriggerManager struct {
	triggers []*CronTrigger
	logger   *slog.Logger
}

// NewCronTriggerManager validates triggers and builds a CronTrigger for each.
// A scheduled start that finds a campaign already running is skipped.
func NewCronTriggerManager(triggers []config.CronTrigger, starter Starter, logger *slog.Logger) (*CronTriggerManager, error) {
	specs, err := ParseTriggerSpecs(triggers)
	if err != nil {
		return nil, err
	}

	m := &CronTriggerManager{logger: logger}
	for _, spec := range specs {
		sel := spec.Selection
		run := func(ctx context.Context) error {
			_, err := starter.Start(ctx, sel)
			if errors.Is(err, campaign.ErrAlreadyRunning) {
				logger.Info("campaign already running, skipping scheduled start")
				return nil
			}
			return err
		}

		trigger, err := NewCronTrigger(spec.CronSpec, run, logger)
		if err != nil {
			return nil, err
		}
		m.triggers = append(m.triggers, trigger)

		logger.Info("trigger registered",
			"schedule", spec.CronSpec,
			"campaign", spec.describe(),
			"next_run", trigger.NextRun(),
		)
	}
	return m, nil
}

// Start launches all triggers. Each trigger runs in its own goroutine.
// Returns immediately. All goroutines exit when ctx is cancelled.
func (m *CronTriggerManager) Start(ctx context.Context) {
	for _, trigger := range m.triggers {
		trigger.Start(ctx)
	}
}

// Len returns the number of triggers.
func (m *CronTriggerManager) Len() int {
	return len(m.triggers)
}

// NextRun returns the earliest scheduled run time across all triggers.
// Returns zero time if there are no triggers.
func (m *CronTriggerManager) NextRun() time.Time {
	var earliest time.Time
	for _, trigger := range m.triggers {
		next := trigger.NextRun()
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}
