package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query Prometheus metrics.
var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docmap",
			Name:      "query_duration_seconds",
			Help:      "Document store query duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op", "collection", "status"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docmap",
			Name:      "queries_total",
			Help:      "Total number of document store queries",
		},
		[]string{"op", "collection", "status"},
	)
)

var registerQueryOnce sync.Once

// RegisterQueryMetrics registers the query collectors with the default registry.
// Safe to call more than once.
func RegisterQueryMetrics() {
	registerQueryOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueriesTotal)
	})
}

// Query status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ObserveQuery records one finished query.
func ObserveQuery(op, collection string, failed bool, d time.Duration) {
	status := StatusOK
	if failed {
		status = StatusError
	}
	QueryDuration.WithLabelValues(op, collection, status).Observe(d.Seconds())
	QueriesTotal.WithLabelValues(op, collection, status).Inc()
}
