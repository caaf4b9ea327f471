package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK   = "ok"
	ResultFail = "fail"
)

// Stop mode label values.
const (
	StopGraceful = "graceful"
	StopKilled   = "killed"
	StopError    = "error"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackcheck",
			Subsystem: "health",
			Name:      "checks_total",
			Help:      "Number of health checks by service label and result.",
		}, []string{"label", "result"},
	)
	healthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stackcheck",
			Subsystem: "health",
			Name:      "check_duration_seconds",
			Help:      "Time spent on a single health check request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"label"},
	)
	forwardStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackcheck",
			Subsystem: "forward",
			Name:      "starts_total",
			Help:      "Number of port-forward processes started.",
		}, []string{"name"},
	)
	forwardStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackcheck",
			Subsystem: "forward",
			Name:      "stops_total",
			Help:      "Number of port-forward processes stopped, by mode (graceful, killed, error).",
		}, []string{"name", "mode"},
	)
	sessionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackcheck",
			Subsystem: "session",
			Name:      "runs_total",
			Help:      "Number of session flow script runs by result.",
		}, []string{"result"},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "stackcheck",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Wall time of the session flow script.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Register registers all metrics with the provided registerer. Calling it again
// with the same registerer is harmless, and a different registerer gathers the
// same collectors. The record helpers stay no-ops until one call succeeds.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{healthChecks, healthDuration, forwardStarts, forwardStops, sessionRuns, sessionDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes everything g gathers to path in the node_exporter
// textfile collector format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveHealthCheck(label string, ok bool, seconds float64) {
	if regOK.Load() {
		healthChecks.WithLabelValues(label, result(ok)).Inc()
		healthDuration.WithLabelValues(label).Observe(seconds)
	}
}

func IncForwardStart(name string) {
	if regOK.Load() {
		forwardStarts.WithLabelValues(name).Inc()
	}
}

func IncForwardStop(name, mode string) {
	if regOK.Load() {
		forwardStops.WithLabelValues(name, mode).Inc()
	}
}

func ObserveSession(ok bool, seconds float64) {
	if regOK.Load() {
		sessionRuns.WithLabelValues(result(ok)).Inc()
		sessionDuration.Observe(seconds)
	}
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFail
}
