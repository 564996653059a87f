// Package prometheus provides Prometheus-backed implementations of the
// fusebind metrics interfaces.
package prometheus

import (
	"time"

	"fusebind/dispatch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// dispatchMetrics is the Prometheus implementation of dispatch.Metrics.
type dispatchMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
	bytesTotal      *prometheus.CounterVec
	operationSize   *prometheus.HistogramVec
	violations      *prometheus.CounterVec
}

// NewDispatchMetrics creates dispatch metrics registered with reg.
//
// Returns nil if reg is nil, which disables collection.
func NewDispatchMetrics(reg prometheus.Registerer) dispatch.Metrics {
	if reg == nil {
		return nil
	}

	return &dispatchMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusebind_requests_total",
				Help: "Total number of replied filesystem requests by operation and result",
			},
			[]string{"op", "result"}, // result: "OK" or errno name
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fusebind_request_duration_milliseconds",
				Help: "Time from dispatch to reply in milliseconds",
				Buckets: []float64{
					0.05, // 50us - in-memory handlers
					0.1,
					0.5,
					1,
					5,
					10,
					50,
					100,
					500,
					1000, // 1s - slow backends
				},
			},
			[]string{"op"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusebind_requests_in_flight",
				Help: "Requests dispatched to a handler and not yet replied",
			},
			[]string{"op"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusebind_bytes_total",
				Help: "Total bytes moved by read and write",
			},
			[]string{"op"},
		),
		operationSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fusebind_operation_size_bytes",
				Help: "Distribution of read and write sizes",
				Buckets: []float64{
					512,
					4096,   // 4KB - page
					32768,  // 32KB
					131072, // 128KB - default max_read
					524288,
					1048576, // 1MB
				},
			},
			[]string{"op"},
		),
		violations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusebind_handler_violations_total",
				Help: "Handler contract violations by operation and kind",
			},
			[]string{"op", "kind"},
		),
	}
}

func (m *dispatchMetrics) RecordRequestStart(op string) {
	m.inFlight.WithLabelValues(op).Inc()
}

func (m *dispatchMetrics) RecordRequestEnd(op string) {
	m.inFlight.WithLabelValues(op).Dec()
}

func (m *dispatchMetrics) RecordRequest(op string, duration time.Duration, result string) {
	m.requestsTotal.WithLabelValues(op, result).Inc()
	m.requestDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *dispatchMetrics) RecordBytes(op string, bytes uint64) {
	m.bytesTotal.WithLabelValues(op).Add(float64(bytes))
	m.operationSize.WithLabelValues(op).Observe(float64(bytes))
}

func (m *dispatchMetrics) RecordViolation(op string, kind string) {
	m.violations.WithLabelValues(op, kind).Inc()
}
