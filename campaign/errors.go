package campaign

import "errors"

var (
	// ErrNotFound is returned when a named run or artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoRuns is returned when no run directories exist at all.
	ErrNoRuns = errors.New("no test reports found")
	// ErrAlreadyRunning is returned when starting while a session exists.
	ErrAlreadyRunning = errors.New("test already running")
	// ErrNoUnitsSpecified is returned for a custom start that names no units.
	ErrNoUnitsSpecified = errors.New("no operators specified")
	// ErrEvidenceUnavailable wraps transport failures from the evidence source.
	ErrEvidenceUnavailable = errors.New("evidence unavailable")
)
