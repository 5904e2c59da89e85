package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus counters for client traffic. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewMetrics creates client metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tierdash",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound requests by HTTP method.",
		}, []string{"method"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tierdash",
			Subsystem: "client",
			Name:      "failures_total",
			Help:      "Failed requests by failure class (network or response).",
		}, []string{"class"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tierdash",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retry attempts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.failures, m.retries)
	}
	return m
}

func (m *Metrics) requested(method string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method).Inc()
}

func (m *Metrics) failed(class string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(class).Inc()
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
