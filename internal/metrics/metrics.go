// Package metrics records per-run counters for the upgrade helpers and
// writes them as a Prometheus textfile for the node exporter collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of a single run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	outcomesTotal   *prometheus.CounterVec
	apiCallsTotal   *prometheus.CounterVec
	rolloutDuration *prometheus.HistogramVec
	lastRun         *prometheus.GaugeVec
}

// New creates a Recorder on a private registry. tool is the subcommand name
// and becomes a constant label on every series.
func New(tool string) *Recorder {
	constLabels := prometheus.Labels{"tool": tool}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "upgrade_helpers",
				Name:        "resource_outcomes_total",
				Help:        "Resources processed by kind and final status",
				ConstLabels: constLabels,
			},
			[]string{"kind", "status"},
		),
		apiCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "upgrade_helpers",
				Name:        "api_writes_total",
				Help:        "Mutating API calls by verb and result",
				ConstLabels: constLabels,
			},
			[]string{"verb", "result"},
		),
		rolloutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "upgrade_helpers",
				Name:        "rollout_wait_seconds",
				Help:        "Time spent waiting for a resource to become ready",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2min
			},
			[]string{"kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "upgrade_helpers",
				Name:        "last_run_timestamp_seconds",
				Help:        "Unix time the run finished, by success",
				ConstLabels: constLabels,
			},
			[]string{"success"},
		),
	}
	r.registry.MustRegister(r.outcomesTotal, r.apiCallsTotal, r.rolloutDuration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordOutcome counts one resource with its final status.
func (r *Recorder) RecordOutcome(kind, status string) {
	if r == nil {
		return
	}
	r.outcomesTotal.WithLabelValues(kind, status).Inc()
}

// RecordWrite counts one patch or create call.
func (r *Recorder) RecordWrite(verb string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.apiCallsTotal.WithLabelValues(verb, result).Inc()
}

// ObserveRollout records how long a readiness wait took.
func (r *Recorder) ObserveRollout(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.rolloutDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Finish stamps the end of the run.
func (r *Recorder) Finish(success bool, now time.Time) {
	if r == nil {
		return
	}
	r.lastRun.WithLabelValues(fmt.Sprint(success)).Set(float64(now.Unix()))
}

// WriteTextfile writes all series to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
