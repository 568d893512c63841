// Package metrics defines the prometheus collectors exported by glowline.
//
// Every collector set is nil-safe: a nil *Scan or *Permission records nothing,
// so components can be built without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "glowline"

// Scan covers proximity scan passes.
type Scan struct {
	passes   prometheus.Counter
	skipped  prometheus.Counter
	duration prometheus.Histogram
	tracked  prometheus.Gauge
	queries  prometheus.Counter
}

// NewScan creates and registers the scan collectors on reg.
func NewScan(reg prometheus.Registerer) *Scan {
	m := &Scan{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "passes_total",
			Help:      "Completed proximity scan passes.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "deferred_total",
			Help:      "Scan passes deferred because no world or player was available.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of one scan pass.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tracked_positions",
			Help:      "Positions in the current snapshot.",
		}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "world_queries_total",
			Help:      "Block lookups issued to the world.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.passes, m.skipped, m.duration, m.tracked, m.queries)
	}
	return m
}

func (m *Scan) ObservePass(d time.Duration, queries, tracked int) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.duration.Observe(d.Seconds())
	m.queries.Add(float64(queries))
	m.tracked.Set(float64(tracked))
}

func (m *Scan) Deferred() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Scan) Cleared() {
	if m == nil {
		return
	}
	m.tracked.Set(0)
}

// Permission covers the handshake on both ends.
type Permission struct {
	sessions  prometheus.Gauge
	responses *prometheus.CounterVec
	requests  prometheus.Counter
}

// NewPermission creates and registers the permission collectors on reg.
func NewPermission(reg prometheus.Registerer) *Permission {
	m := &Permission{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "permission",
			Name:      "sessions",
			Help:      "Open permission sessions.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "permission",
			Name:      "responses_total",
			Help:      "Permission messages sent or received, by verdict.",
		}, []string{"allowed"}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "permission",
			Name:      "requests_total",
			Help:      "Permission requests sent or received.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.responses, m.requests)
	}
	return m
}

func (m *Permission) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Permission) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Permission) Request() {
	if m == nil {
		return
	}
	m.requests.Inc()
}

func (m *Permission) Response(allowed bool) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.responses.WithLabelValues(label).Inc()
}
