// Package metrics holds GRASS's Prometheus instrumentation: session,
// auth, command, byte, and transfer-worker series, registered against
// a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth result labels (kept low-cardinality).
const (
	AuthOK     = "ok"
	AuthFailed = "failed"
)

// Registry bundles every GRASS metric behind a private
// prometheus.Registry (never the global default, so multiple servers
// in the same process, as in tests, don't collide).
type Registry struct {
	reg *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec

	authAttempts *prometheus.CounterVec
	authDuration *prometheus.HistogramVec

	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter

	transferWorkersActive   prometheus.Gauge
	transferWorkersRejected prometheus.Counter

	storageIOErrors *prometheus.CounterVec
}

// New constructs and registers every GRASS metric.
func New() *Registry {
	reg := prometheus.NewRegistry()
	const ns, sub = "grass", "server"

	m := &Registry{reg: reg}

	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, Name: "sessions_active",
		Help: "Current number of active GRASS sessions.",
	})
	m.sessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "sessions_total",
		Help: "Total number of GRASS sessions started, by terminal result.",
	}, []string{"result"})

	m.authAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "auth_attempts_total",
		Help: "Total login attempts by result.",
	}, []string{"result"})
	m.authDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, Name: "auth_duration_seconds",
		Help:    "Login decision latency.",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.05, 0.1},
	}, []string{"result"})

	m.opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "ops_total",
		Help: "Total commands executed, by command and result.",
	}, []string{"op", "result"})
	m.opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, Name: "op_duration_seconds",
		Help:    "Command execution latency.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"op", "result"})

	m.bytesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "bytes_in_total",
		Help: "Total bytes received via put.",
	})
	m.bytesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "bytes_out_total",
		Help: "Total bytes sent via get.",
	})

	m.transferWorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, Name: "transfer_workers_active",
		Help: "Currently running get/put side-channel workers.",
	})
	m.transferWorkersRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "transfer_workers_rejected_total",
		Help: "Transfers rejected because the worker pool was full.",
	})

	m.storageIOErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, Name: "storage_io_errors_total",
		Help: "Filesystem operation failures, by op.",
	}, []string{"op"})

	reg.MustRegister(
		m.sessionsActive, m.sessionsTotal,
		m.authAttempts, m.authDuration,
		m.opTotal, m.opDuration,
		m.bytesIn, m.bytesOut,
		m.transferWorkersActive, m.transferWorkersRejected,
		m.storageIOErrors,
	)

	return m
}

// Gatherer exposes the underlying registry for promhttp.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Registry) SessionStarted() { m.sessionsActive.Inc() }
func (m *Registry) SessionEnded(result string) {
	m.sessionsActive.Dec()
	m.sessionsTotal.WithLabelValues(result).Inc()
}

func (m *Registry) ObserveAuth(result string, dur time.Duration) {
	m.authAttempts.WithLabelValues(result).Inc()
	m.authDuration.WithLabelValues(result).Observe(dur.Seconds())
}

func (m *Registry) ObserveOp(op, result string, dur time.Duration) {
	m.opTotal.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op, result).Observe(dur.Seconds())
}

func (m *Registry) AddBytesIn(n int64) {
	if n > 0 {
		m.bytesIn.Add(float64(n))
	}
}

func (m *Registry) AddBytesOut(n int64) {
	if n > 0 {
		m.bytesOut.Add(float64(n))
	}
}

func (m *Registry) TransferWorkerStarted() { m.transferWorkersActive.Inc() }
func (m *Registry) TransferWorkerEnded()   { m.transferWorkersActive.Dec() }
func (m *Registry) TransferWorkerRejected() {
	m.transferWorkersRejected.Inc()
}

func (m *Registry) IncStorageIOError(op string) {
	m.storageIOErrors.WithLabelValues(op).Inc()
}
