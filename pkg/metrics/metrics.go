// Package metrics provides Prometheus instrumentation for Orbit's
// admission-control pipeline.
//
// The package exposes pre-registered collectors for the events that matter
// when a pool of rate-limited credentials serves concurrent callers:
// admissions (and whether they were immediate or waited), gate bypasses,
// the time callers spent parked waiting for a window slot, cursor rotations,
// saturated fallbacks, and transport close failures during shutdown.
//
// Example:
//
//	timer := metrics.NewTimer("acquire")
//	cred, err := p.AcquireFor(ctx, resource)
//	metrics.AdmissionWait.WithLabelValues(cred.ID()).Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionsTotal counts rate-limit admissions.
	// Labels: credential (credential ID), mode (immediate/waited)
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_admissions_total",
			Help: "Total number of rate-limit admissions",
		},
		[]string{"credential", "mode"},
	)

	// BypassesTotal counts requests the gate let through without consulting
	// the pool. A bypass is not an admission: it consumes no capacity.
	BypassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_gate_bypasses_total",
			Help: "Total number of requests bypassing rate limiting",
		},
	)

	// AdmissionWait tracks how long callers were parked before admission.
	// Labels: credential (credential ID)
	AdmissionWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "orbit_admission_wait_seconds",
			Help: "Time spent waiting for a rate-limit slot",
			Buckets: []float64{
				0.001, // sub-millisecond: immediate admissions
				0.01,
				0.05,
				0.1, // minimum clamped wait
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
			},
		},
		[]string{"credential"},
	)

	// RotationsTotal counts cursor rotations across the credential pool
	RotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_pool_rotations_total",
			Help: "Total number of credential pool cursor rotations",
		},
	)

	// SaturatedFallbacksTotal counts acquisitions that found every credential
	// saturated and fell back to the soonest-available one
	SaturatedFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_pool_saturated_fallbacks_total",
			Help: "Total number of acquisitions with no credential immediately available",
		},
	)

	// TransportCloseFailures counts transport close failures during pool shutdown
	TransportCloseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_transport_close_failures_total",
			Help: "Total number of transport close failures during shutdown",
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
