package application

import "time"

const (
	OpBook   = "book"
	OpCancel = "cancel"
	OpUpdate = "update"

	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeFailure  = "failure"
)

// Metrics receives engine and cache observations.
type Metrics interface {
	ObserveOperation(op, outcome string)
	ObserveSnapshot(took time.Duration, err error)
	ObserveInvalidation(source string)
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveOperation(string, string)      {}
func (NoopMetrics) ObserveSnapshot(time.Duration, error) {}
func (NoopMetrics) ObserveInvalidation(string)           {}
