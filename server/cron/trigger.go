// Package cron starts campaigns on a schedule.
//
// A CronTrigger runs a callback according to a cron expression. The
// CronTriggerManager builds one trigger per configured entry, each starting a
// campaign with its own unit selection.
//
// Example usage:
//
//	mgr, err := cron.NewCronTriggerManager(cfg.Server.Cron, provider, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()    // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// RunFunc is invoked at every scheduled time.
type RunFunc func(ctx context.Context) error

// CronTrigger executes a RunFunc according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time
}

// NewCronTrigger creates a new CronTrigger with the given cron specification.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewCronTrigger(spec string, run RunFunc, logger *slog.Logger) (*CronTrigger, error) {
	schedule, err := parseSchedule(spec)
	if err != nil {
		return nil, err
	}

	return &CronTrigger{
		spec:     spec,
		schedule: schedule,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func parseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return schedule, nil
}

// Start launches a goroutine that triggers runs according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(ct.now())
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		nextRun := ct.NextRun()
		wait := nextRun.Sub(ct.now())

		ct.logger.Debug("waiting for next scheduled run",
			"schedule", ct.spec,
			"next_run", nextRun,
			"wait_duration", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			ct.logger.Info("cron trigger shutting down", "schedule", ct.spec)
			return
		case <-timer.C:
			ct.execute(ctx)
		}
	}
}

func (ct *CronTrigger) execute(ctx context.Context) {
	ct.logger.Info("starting scheduled campaign", "schedule", ct.spec)

	if err := ct.run(ctx); err != nil {
		ct.logger.Warn("scheduled campaign did not start", "schedule", ct.spec, "error", err)
		return
	}
	ct.logger.Info("scheduled campaign started", "schedule", ct.spec)
}
