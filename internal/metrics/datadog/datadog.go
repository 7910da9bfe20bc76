// Package datadog sends run metrics to a DogStatsD agent.
//
// The metrics package names series the Prometheus way (ysv_rows_total).
// Here they are renamed to Datadog's dotted style, so ysv_rows_total becomes
// ysv.rows and ysv_step_duration_seconds becomes ysv.step_duration_seconds.
package datadog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/ysv-rs/ysv/internal/metrics"
)

type Config struct {
	// Addr is "host:port" or "unix:///path/to/dsd.socket".
	Addr       string
	Namespace  string
	GlobalTags []string
}

// Backend implements metrics.Backend. The zero value drops everything.
type Backend struct {
	client statsd.ClientInterface
}

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if ns := cfg.Namespace; ns != "" {
		if !strings.HasSuffix(ns, ".") {
			ns += "."
		}
		opts = append(opts, statsd.WithNamespace(ns))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter truncates fractional deltas; ysv only counts whole rows and steps.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client != nil {
		_ = b.client.Count(seriesName(name), int64(delta), tags(labels), 1)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client != nil {
		_ = b.client.Histogram(seriesName(name), value, tags(labels), 1)
	}
}

// Flush closes the client, sending whatever is buffered. A backend serves a
// single run.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// seriesName maps "ysv_rows_total" to "ysv.rows".
func seriesName(name string) string {
	name = strings.TrimSuffix(name, "_total")
	if prefix, rest, ok := strings.Cut(name, "_"); ok {
		return prefix + "." + rest
	}
	return name
}

// tags renders labels as "key:value", sorted for stable packets.
func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
