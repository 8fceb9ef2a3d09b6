package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Reconciliation outcomes by entry path and observed status",
		},
		[]string{"path", "status", "won"},
	)

	webhookRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_rejections_total",
			Help: "Webhook deliveries rejected for an invalid signature",
		},
	)

	seatsExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workshop_seats_exceeded_total",
			Help: "Successful payments that landed after the workshop sold out",
		},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_registrations_total",
			Help: "Registration attempts by plan and outcome",
		},
		[]string{"plan", "outcome"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latencies for chi routers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// RecordReconciliation counts one reconciliation call. path is "webhook" or
// "verify", won reports whether this call performed the transition.
func RecordReconciliation(path string, status string, won bool) {
	reconciliationsTotal.WithLabelValues(path, status, strconv.FormatBool(won)).Inc()
}

func RecordWebhookRejection() {
	webhookRejections.Inc()
}

func RecordSeatsExceeded() {
	seatsExceeded.Inc()
}

func RecordRegistration(plan, outcome string) {
	registrationsTotal.WithLabelValues(plan, outcome).Inc()
}
