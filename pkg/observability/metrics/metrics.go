package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/readmit-ai/hrp/pkg/results"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrp_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	intakeSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrp_intake_submissions_total",
			Help: "Total number of intake forms handed off to the results page",
		},
	)

	predictionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrp_prediction_outcomes_total",
			Help: "Results visits by terminal outcome",
		},
		[]string{"outcome"},
	)

	predictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrp_prediction_duration_seconds",
			Help:    "Time from visit start to terminal state",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Outcome labels
const (
	OutcomeHighRisk     = "high_risk"
	OutcomeLowRisk      = "low_risk"
	OutcomeMissingInput = "missing_input"
	OutcomeFailed       = "failed"
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := routePath(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePath keeps label cardinality bounded by using the matched mux template.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func RecordIntakeSubmission() {
	intakeSubmissions.Inc()
}

// OutcomeLabel classifies a terminal visit outcome.
func OutcomeLabel(o results.Outcome) string {
	switch {
	case o.MissingInput:
		return OutcomeMissingInput
	case o.State == results.StateSuccess && o.Result != nil && o.Result.WillReadmit:
		return OutcomeHighRisk
	case o.State == results.StateSuccess:
		return OutcomeLowRisk
	default:
		return OutcomeFailed
	}
}

// OutcomeObserver feeds results outcomes into the prediction metrics.
type OutcomeObserver struct{}

func (OutcomeObserver) ObserveOutcome(_ context.Context, o results.Outcome) {
	predictionOutcomes.WithLabelValues(OutcomeLabel(o)).Inc()
	if !o.MissingInput {
		predictionDuration.Observe(o.Duration.Seconds())
	}
}
