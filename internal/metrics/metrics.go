// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	ExtractionRuns     prometheus.Counter
	FallbackRuns       prometheus.Counter
	TasksExtracted     prometheus.Counter
	ExtractionDuration prometheus.Histogram

	TranscriptionDuration prometheus.Histogram
	TranscriptionFailures prometheus.Counter

	IssuesCreated prometheus.Counter
	IssuesFailed  prometheus.Counter

	ActiveSessions prometheus.Gauge

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExtractionRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_extraction_runs_total",
			Help: "Total number of transcript extraction runs",
		}),
		FallbackRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_extraction_fallback_total",
			Help: "Extraction runs that found no action item and produced the review task",
		}),
		TasksExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_tasks_extracted_total",
			Help: "Total number of tasks produced by extraction",
		}),
		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskscribe_extraction_duration_seconds",
			Help:    "Time spent extracting tasks from a transcript",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
		}),

		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskscribe_transcription_duration_seconds",
			Help:    "Wall time of transcription requests",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34 minutes
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_transcription_failures_total",
			Help: "Transcription requests that failed",
		}),

		IssuesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_issues_created_total",
			Help: "Jira issues created",
		}),
		IssuesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "taskscribe_issues_failed_total",
			Help: "Tasks whose Jira issue could not be created",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "taskscribe_active_sessions",
			Help: "Sessions held in memory",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskscribe_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskscribe_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) ObserveExtraction(res extractor.Result, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionRuns.Inc()
	if res.Fallback {
		m.FallbackRuns.Inc()
	}
	m.TasksExtracted.Add(float64(len(res.Tasks)))
	m.ExtractionDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveTranscription(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Observe(d.Seconds())
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

func (m *Metrics) ObserveSubmission(r jira.Report) {
	if m == nil {
		return
	}
	m.IssuesCreated.Add(float64(len(r.Created)))
	m.IssuesFailed.Add(float64(len(r.Failed)))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// Middleware records request counts and latency keyed by the matched chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
