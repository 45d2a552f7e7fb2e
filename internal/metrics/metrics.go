// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lms-discussions-api/internal/apperr"
)

const namespace = "lms_discussions"

var (
	CommentOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comment_operations_total",
		Help:      "Comment create, update and delete calls by result.",
	}, []string{"op", "result"})

	ReactionOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaction_operations_total",
		Help:      "Reaction set and clear calls by reaction type and result.",
	}, []string{"op", "type", "result"})

	FormSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "form_submissions_total",
		Help:      "Form submissions by schema and result.",
	}, []string{"schema", "result"})

	UploadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Bytes stored by upload kind.",
	}, []string{"kind"})

	ImportedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Thread import rows by outcome.",
	}, []string{"outcome"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		CommentOperations,
		ReactionOperations,
		FormSubmissions,
		UploadBytes,
		ImportedRows,
		HTTPRequestDuration,
	)
}

// RegisterDB exports connection pool statistics for db
func RegisterDB(reg prometheus.Registerer, db *sql.DB, name string) error {
	return reg.Register(collectors.NewDBStatsCollector(db, name))
}

// Result buckets an error into a low-cardinality label value
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrMaxDepth):
		return "max_depth"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrUnauthorized), errors.Is(err, apperr.ErrForbidden):
		return "denied"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
