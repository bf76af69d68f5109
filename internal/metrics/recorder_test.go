package metrics

import (
	"testing"
	"time"
)

type testRecorder struct {
	records  map[string]int
	skipped  map[string]int
	invalid  int
	items    int
	outcomes map[OutcomeLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{records: map[string]int{}, skipped: map[string]int{}, outcomes: map[OutcomeLabel]int{}}
}

func (t *testRecorder) IncRecord(kind string)              { t.records[kind]++ }
func (t *testRecorder) IncSkipped(reason string)           { t.skipped[reason]++ }
func (t *testRecorder) IncInvalidInput()                   { t.invalid++ }
func (t *testRecorder) ObserveItemDuration(time.Duration)  { t.items++ }
func (t *testRecorder) ObserveRunDuration(time.Duration)   {}
func (t *testRecorder) IncRunOutcome(outcome OutcomeLabel) { t.outcomes[outcome]++ }

func TestRecorderImplementations(t *testing.T) {
	for _, r := range []Recorder{NoopRecorder{}, newTestRecorder(), NewPrometheusRecorder(nil)} {
		r.IncRecord("resource")
		r.IncSkipped("not_included")
		r.IncInvalidInput()
		r.ObserveItemDuration(time.Millisecond)
		r.ObserveRunDuration(time.Second)
		r.IncRunOutcome(OutcomeSuccess)
	}

	tr := newTestRecorder()
	tr.IncRecord("resource")
	tr.IncRecord("revisit")
	tr.IncRecord("resource")
	if tr.records["resource"] != 2 || tr.records["revisit"] != 1 {
		t.Fatalf("unexpected record counts: %v", tr.records)
	}
}
