// Package metrics defines the Prometheus collectors for crawling and course
// queries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label of QueriesTotal.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds all collectors.
type Metrics struct {
	PagesVisited  prometheus.Counter
	FetchFailures prometheus.Counter
	RobotsDenied  prometheus.Counter
	Contributions prometheus.Counter
	IndexWords    prometheus.Gauge
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_pages_visited_total",
			Help: "Catalog pages fetched, extracted and marked visited.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_fetch_failures_total",
			Help: "Catalog pages skipped because fetching failed.",
		}),
		RobotsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_robots_denied_total",
			Help: "Catalog pages skipped because robots.txt disallows them.",
		}),
		Contributions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_contributions_total",
			Help: "Course contributions merged into the index.",
		}),
		IndexWords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_words",
			Help: "Distinct words in the most recent index.",
		}),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "course_queries_total",
				Help: "Course queries by outcome (ok, empty, invalid, error).",
			},
			[]string{"outcome"},
		),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "course_query_duration_seconds",
			Help:    "Course query latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	reg.MustRegister(
		m.PagesVisited,
		m.FetchFailures,
		m.RobotsDenied,
		m.Contributions,
		m.IndexWords,
		m.QueriesTotal,
		m.QueryDuration,
	)
	return m
}

// Discard returns collectors registered on a private registry, for callers
// that do not export metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
