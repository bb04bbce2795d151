package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voltbridge",
			Subsystem: "ocpp",
			Name:      "calls_total",
			Help:      "Outbound calls by role, action, and outcome.",
		},
		[]string{"role", "action", "outcome"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voltbridge",
			Subsystem: "ocpp",
			Name:      "frames_total",
			Help:      "Wire frames by direction and disposition.",
		},
		[]string{"role", "direction", "disposition"},
	)
	connectedPoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voltbridge",
			Subsystem: "central",
			Name:      "connected_points",
			Help:      "Points currently present in the peer registry.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voltbridge",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voltbridge",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsTotal, framesTotal, connectedPoints, httpRequests, httpDuration)
	})
}

// Call outcomes.
const (
	OutcomeResult = "result"
	OutcomeError  = "error"
	OutcomeFailed = "failed"
)

func RecordCall(role, action, outcome string) {
	RegisterMetrics()
	callsTotal.WithLabelValues(role, action, outcome).Inc()
}

func RecordFrame(role, direction, disposition string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(role, direction, disposition).Inc()
}

func SetConnectedPoints(n int) {
	RegisterMetrics()
	connectedPoints.Set(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
