package metrics

import "time"

// OutcomeLabel enumerates final run states.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeWarning  OutcomeLabel = "warning" // finished with invalid inputs
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for an assembly run.
type Recorder interface {
	// IncRecord counts a written record by WARC-Type.
	IncRecord(kind string)
	// IncSkipped counts an item dropped before writing, by reason.
	IncSkipped(reason string)
	IncInvalidInput()
	ObserveItemDuration(d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncRecord(string)                  {}
func (NoopRecorder) IncSkipped(string)                 {}
func (NoopRecorder) IncInvalidInput()                  {}
func (NoopRecorder) ObserveItemDuration(time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)  {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)        {}
