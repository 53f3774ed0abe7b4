// Package metrics records deployer operation metrics in a private Prometheus registry.
//
// A CLI run is short-lived, so the registry is not served over HTTP. When a
// metrics file is configured the registry is written once on exit in the text
// exposition format, ready for the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder holds the deployer metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal  *prometheus.CounterVec
	rollbacksTotal   *prometheus.CounterVec
	terraformSeconds *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "airnode",
				Subsystem: "deployer",
				Name:      "operations_total",
				Help:      "Total number of deployer operations by result",
			},
			[]string{"operation", "result"},
		),
		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "airnode",
				Subsystem: "deployer",
				Name:      "rollbacks_total",
				Help:      "Total number of automatic removals after a failed deployment by result",
			},
			[]string{"result"},
		),
		terraformSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "airnode",
				Subsystem: "deployer",
				Name:      "terraform_command_duration_seconds",
				Help:      "Duration of terraform commands in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
			},
			[]string{"command"},
		),
	}

	r.registry.MustRegister(r.operationsTotal, r.rollbacksTotal, r.terraformSeconds)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Operation records the outcome of a deploy, remove, list or info run.
func (r *Recorder) Operation(operation string, err error) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(operation, result(err)).Inc()
}

// Rollback records the outcome of an automatic removal.
func (r *Recorder) Rollback(err error) {
	if r == nil {
		return
	}
	r.rollbacksTotal.WithLabelValues(result(err)).Inc()
}

// TerraformCommand records how long a terraform subcommand ran.
func (r *Recorder) TerraformCommand(command string, duration time.Duration) {
	if r == nil {
		return
	}
	r.terraformSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
