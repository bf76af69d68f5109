package metrics

import (
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	reg           *prom.Registry
	records       *prom.CounterVec
	skipped       *prom.CounterVec
	invalidInputs prom.Counter
	itemDuration  prom.Histogram
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.records = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "warcbuilder",
			Name:      "records_written_total",
			Help:      "Records written to the archive by WARC-Type",
		}, []string{"kind"})
		pr.skipped = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "warcbuilder",
			Name:      "items_skipped_total",
			Help:      "Items dropped before writing, by reason",
		}, []string{"reason"})
		pr.invalidInputs = prom.NewCounter(prom.CounterOpts{
			Namespace: "warcbuilder",
			Name:      "invalid_inputs_total",
			Help:      "Inputs that could not be enumerated",
		})
		pr.itemDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "warcbuilder",
			Name:      "item_duration_seconds",
			Help:      "Time spent resolving and writing one item and its derived records",
			Buckets:   prom.ExponentialBuckets(0.0005, 4, 10),
		})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "warcbuilder",
			Name:      "run_duration_seconds",
			Help:      "Total assembly duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "warcbuilder",
			Name:      "run_outcomes_total",
			Help:      "Assembly runs by final status",
		}, []string{"outcome"})
		reg.MustRegister(pr.records, pr.skipped, pr.invalidInputs, pr.itemDuration, pr.runDuration, pr.runOutcome)
	})
	return pr
}

func (p *PrometheusRecorder) IncRecord(kind string) {
	if p == nil || p.records == nil {
		return
	}
	p.records.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncSkipped(reason string) {
	if p == nil || p.skipped == nil {
		return
	}
	p.skipped.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncInvalidInput() {
	if p == nil || p.invalidInputs == nil {
		return
	}
	p.invalidInputs.Inc()
}

func (p *PrometheusRecorder) ObserveItemDuration(d time.Duration) {
	if p == nil || p.itemDuration == nil {
		return
	}
	p.itemDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// WriteTextfile writes the current metrics to path in the text exposition
// format. The file is replaced atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
