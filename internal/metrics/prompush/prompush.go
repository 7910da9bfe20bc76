// Package prompush pushes run metrics to a Prometheus Pushgateway. A ysv run
// is a batch job with no scrape endpoint, so metrics are pushed once at exit.
package prompush

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ysv-rs/ysv/internal/metrics"
)

// DefaultJob is the Pushgateway job name used when none is given.
const DefaultJob = "ysv"

// Backend collects metrics in a private registry and pushes them on Flush.
type Backend struct {
	gatewayURL string
	jobName    string
	timeout    time.Duration
	reg        *prometheus.Registry

	steps    *prometheus.CounterVec   // step, status
	duration *prometheus.HistogramVec // step, status
	rows     *prometheus.CounterVec   // kind
	batches  prometheus.Counter
}

// NewBackend registers the ysv collectors. jobName is the Pushgateway
// grouping job; the "job" label on recorded metrics is dropped in its favor.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = DefaultJob
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		timeout:    10 * time.Second,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"step", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by kind (read, written, cell_errors, skipped_sources).",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Bulk-insert batches flushed by database sinks.",
		}),
	}
	for _, c := range []prometheus.Collector{b.steps, b.duration, b.rows, b.batches} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.steps != nil {
			b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rows != nil {
			b.rows.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.duration == nil {
		return
	}
	b.duration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush replaces this job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}
