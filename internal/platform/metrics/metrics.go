// Package metrics holds the Prometheus collectors served on the status page /metrics route.
// Every method is safe on a nil *Metrics so components can run without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oquvbot"

// Flow outcomes recorded by FlowOutcome.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
	OutcomeInterrupted = "interrupted"
	OutcomeExpired     = "expired"
)

// Metrics owns a private registry with the bot's collectors plus Go and process collectors.
type Metrics struct {
	registry *prometheus.Registry

	commands       *prometheus.CounterVec
	flowOutcomes   *prometheus.CounterVec
	recordWrites   *prometheus.CounterVec
	reconnects     prometheus.Counter
	updateDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands received, by command name.",
		}, []string{"command"}),
		flowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_outcomes_total",
			Help:      "Conversation flows that ended, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		recordWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_writes_total",
			Help:      "Record appends, by table and result.",
		}, []string{"table", "result"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reconnects_total",
			Help:      "Table store connection rebuilds.",
		}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one chat update.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.commands, m.flowOutcomes, m.recordWrites, m.reconnects, m.updateDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

func (m *Metrics) FlowOutcome(flow, outcome string) {
	if m == nil {
		return
	}
	m.flowOutcomes.WithLabelValues(flow, outcome).Inc()
}

// RecordWrite counts one append attempt sequence; ok is the final result after retries.
func (m *Metrics) RecordWrite(table string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.recordWrites.WithLabelValues(table, result).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ObserveUpdate records how long one update took, measured from start.
func (m *Metrics) ObserveUpdate(start time.Time) {
	if m == nil {
		return
	}
	m.updateDuration.Observe(time.Since(start).Seconds())
}
