package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes queue depth and completion counters to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	pendingRequests prometheus.Gauge
	pendingTasks    prometheus.Gauge
	busy            prometheus.Gauge
	requests        *prometheus.CounterVec
	completions     *prometheus.CounterVec
	unknown         *prometheus.CounterVec
}

// NewMetrics registers the coordinator collectors on reg.
// A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "formalink",
			Name:      "pending_requests",
			Help:      "Requests accepted and not yet drained.",
		}),
		pendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "formalink",
			Name:      "pending_tasks",
			Help:      "Tasks handed to executors and not yet completed.",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "formalink",
			Name:      "busy",
			Help:      "1 while any request or task is outstanding.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formalink",
			Name:      "requests_total",
			Help:      "Link requests by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formalink",
			Name:      "task_completions_total",
			Help:      "Task completions by result.",
		}, []string{"result"}),
		unknown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formalink",
			Name:      "unknown_completions_total",
			Help:      "Completions that referenced an untracked id.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.pendingRequests, m.pendingTasks, m.busy, m.requests, m.completions, m.unknown)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) setDepth(requests, tasks int) {
	m.pendingRequests.Set(float64(requests))
	m.pendingTasks.Set(float64(tasks))
}

func (m *Metrics) setBusy(busy bool) {
	if busy {
		m.busy.Set(1)
	} else {
		m.busy.Set(0)
	}
}

func (m *Metrics) request(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) completion(failed bool) {
	if failed {
		m.completions.WithLabelValues("failure").Inc()
	} else {
		m.completions.WithLabelValues("success").Inc()
	}
}

func (m *Metrics) unknownCompletion(kind string) {
	m.unknown.WithLabelValues(kind).Inc()
}
