// Package metrics holds the Prometheus instruments for the service. All
// counters are registered at init and bumped through the Observe helpers so
// callers never touch the collectors directly.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lang2sql_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lang2sql_uploads_total",
			Help: "Data file uploads by format and outcome.",
		},
		[]string{"format", "outcome"},
	)

	messagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lang2sql_chat_messages_total",
			Help: "Chat messages handled.",
		},
	)

	translationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lang2sql_translation_failures_total",
			Help: "Messages the model could not turn into a statement.",
		},
	)

	executionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lang2sql_execution_failures_total",
			Help: "Generated statements rejected by the database.",
		},
	)

	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lang2sql_statements_total",
			Help: "Successfully executed statements by kind.",
		},
		[]string{"kind"},
	)

	downloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lang2sql_downloads_total",
			Help: "Database file downloads served.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		uploadsTotal,
		messagesTotal,
		translationFailures,
		executionFailures,
		statementsTotal,
		downloadsTotal,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts every request by method and response code.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// ObserveUpload records one upload attempt.
func ObserveUpload(format string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	uploadsTotal.WithLabelValues(format, outcome).Inc()
}

// ObserveMessage records one chat message entering the pipeline.
func ObserveMessage() {
	messagesTotal.Inc()
}

// ObserveTranslationFailure records a failed prompt translation.
func ObserveTranslationFailure() {
	translationFailures.Inc()
}

// ObserveExecutionFailure records a statement the engine rejected.
func ObserveExecutionFailure() {
	executionFailures.Inc()
}

// ObserveStatement records a successfully executed statement.
func ObserveStatement(kind string) {
	statementsTotal.WithLabelValues(kind).Inc()
}

// ObserveDownload records one served database download.
func ObserveDownload() {
	downloadsTotal.Inc()
}
