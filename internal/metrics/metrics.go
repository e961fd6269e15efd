// Package metrics exposes the daemon's Prometheus counters/gauges, grounded
// on loykin-provisr/internal/metrics.go's idempotent Register/no-op-until-
// registered shape, renamed to the mcproc namespace and relabeled from a
// single process name to the (project, name) key spec.md §3 uses.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of Start RPCs that spawned a child (including force-restarts).",
		}, []string{"project", "name"},
	)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of Stop RPCs that transitioned a record out of a running state.",
		}, []string{"project", "name"},
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of Restart RPCs.",
		}, []string{"project", "name"},
	)
	readinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "readiness_wait_seconds",
			Help:      "Time from spawn to a Start RPC resolving Running.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"project", "name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between ProcessRecord states.",
		}, []string{"project", "name", "from", "to"},
	)
	runningCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcproc",
			Subsystem: "process",
			Name:      "running_count",
			Help:      "Current number of records in a non-terminal state.",
		},
	)
)

// Register registers every collector with r. Safe to call multiple times;
// calls after the first successful one are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{starts, stops, restarts, readinessWait, stateTransitions, runningCount}
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

// Handler serves Prometheus metrics for the default gatherer. The caller
// wires it to an opt-in localhost listener (spec.md's Non-goals exclude
// remote access by default, not a local opt-in; see internal/config's
// MetricsListenAddr).
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(project, name string) {
	if regOK.Load() {
		starts.WithLabelValues(project, name).Inc()
	}
}

func IncStop(project, name string) {
	if regOK.Load() {
		stops.WithLabelValues(project, name).Inc()
	}
}

func IncRestart(project, name string) {
	if regOK.Load() {
		restarts.WithLabelValues(project, name).Inc()
	}
}

func ObserveReadinessWait(project, name string, seconds float64) {
	if regOK.Load() {
		readinessWait.WithLabelValues(project, name).Observe(seconds)
	}
}

func RecordStateTransition(project, name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(project, name, from, to).Inc()
	}
}

func SetRunningCount(n int) {
	if regOK.Load() {
		runningCount.Set(float64(n))
	}
}
