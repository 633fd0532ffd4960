package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetdash",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Backend requests issued by the dashboard, by operation and outcome.",
	}, []string{"operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleetdash",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Latency of backend requests issued by the dashboard.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	return &metrics{
		requests: register(reg, requests),
		duration: register(reg, duration),
	}
}

// register registers c, reusing an identical collector that is already
// registered so several clients can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observe(op, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
