package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftwise_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftwise_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	remindersGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftwise_reminders_generated_total",
			Help: "Total reminder records created by kind",
		},
		[]string{"kind"},
	)

	remindersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftwise_reminders_processed_total",
			Help: "Total reminders processed by outcome and kind",
		},
		[]string{"outcome", "kind"},
	)

	remindersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "craftwise_reminders_cancelled_total",
			Help: "Total pending reminders cancelled after booking withdrawal",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "craftwise_sweep_duration_seconds",
			Help:    "Duration of one due-reminder sweep",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
	)

	dispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftwise_dispatch_latency_seconds",
			Help:    "Email dispatch latency distribution",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 15},
		},
		[]string{"outcome"},
	)

	dueBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "craftwise_due_backlog",
			Help: "Due reminders found by the most recent sweep",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReminderGenerated records one created reminder record
func RecordReminderGenerated(kind string) {
	remindersGenerated.WithLabelValues(kind).Inc()
}

// RecordReminderProcessed records a processing outcome ("sent" or "failed")
func RecordReminderProcessed(outcome, kind string) {
	remindersProcessed.WithLabelValues(outcome, kind).Inc()
}

// RecordRemindersCancelled records bulk cancellations
func RecordRemindersCancelled(count int64) {
	remindersCancelled.Add(float64(count))
}

// RecordSweep records the duration of one due-reminder sweep
func RecordSweep(duration time.Duration) {
	sweepDuration.Observe(duration.Seconds())
}

// RecordDispatch records email dispatch latency by outcome
func RecordDispatch(outcome string, latency time.Duration) {
	dispatchLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// SetDueBacklog sets the size of the latest due batch
func SetDueBacklog(count int) {
	dueBacklog.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
