package campaign

import "time"

// Status is the live view of a campaign, recomputed on every poll.
type Status struct {
	Active      bool      `json:"active"`
	CurrentUnit string    `json:"current_unit"`
	Phase       Phase     `json:"phase"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Remaining   int       `json:"remaining"`
	RunID       string    `json:"run_id"`
	StartedAt   string    `json:"started_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// IdleStatus is the status reported when no session exists.
func IdleStatus(now time.Time) Status {
	return Status{Phase: PhaseIdle, Timestamp: now}
}

// WithProgress copies the progress counters into s.
func (s Status) WithProgress(p Progress) Status {
	s.Total = p.Total
	s.Completed = p.Completed
	s.Remaining = p.Remaining
	return s
}

// StartResult is returned by a successful start.
type StartResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
