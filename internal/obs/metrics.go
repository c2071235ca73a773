// Package obs holds the Prometheus collectors for HTTP traffic and custody
// activity.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AssignmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custody_assignments_total",
		Help: "Scales handed out to units.",
	})

	ReturnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custody_returns_total",
			Help: "Scales returned, by reported condition.",
		},
		[]string{"condition"},
	)

	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custody_audit_records_total",
			Help: "Audit entries written, by action type.",
		},
		[]string{"action"},
	)

	AuditWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custody_audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	})

	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custody_login_attempts_total",
			Help: "Login attempts, by result.",
		},
		[]string{"result"},
	)

	CalibrationExpired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "custody_calibration_expired_scales",
		Help: "Scales whose calibration is past due at the last sweep.",
	})

	CalibrationExpiring = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "custody_calibration_expiring_scales",
		Help: "Scales due for calibration within the warning window at the last sweep.",
	})
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			AssignmentsTotal, ReturnsTotal, AuditRecordsTotal, AuditWriteFailuresTotal,
			LoginAttemptsTotal, CalibrationExpired, CalibrationExpiring,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge. The path
// label is the chi route pattern so ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := RoutePattern(r)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// RoutePattern returns the matched chi pattern, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
