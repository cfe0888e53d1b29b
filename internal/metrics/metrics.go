// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the business metrics for sentiment scoring
type Metrics struct {
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	KeywordsExtracted prometheus.Counter
	TasksTotal        *prometheus.CounterVec
	ReviewsSaved      prometheus.Counter

	registerer prometheus.Registerer
}

// New registers the business metrics with reg under namespace
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of sentiment analyses by resulting label.",
		}, []string{"label"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent scoring a single text.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		KeywordsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_extracted_total",
			Help:      "Number of keywords returned by keyword extraction.",
		}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Queue tasks processed by type and status.",
		}, []string{"type", "status"}),
		ReviewsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_saved_total",
			Help:      "Number of reviews stored through the API.",
		}),
		registerer: reg,
	}
}

// ObserveAnalysis records one scoring call
func (m *Metrics) ObserveAnalysis(label string, started time.Time) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(label).Inc()
	m.AnalysisDuration.Observe(time.Since(started).Seconds())
}

// ObserveKeywords records the number of extracted keywords
func (m *Metrics) ObserveKeywords(n int) {
	if m == nil {
		return
	}
	m.KeywordsExtracted.Add(float64(n))
}

// ObserveTask records the outcome of one queue task
func (m *Metrics) ObserveTask(taskType, status string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(taskType, status).Inc()
}

// RegisterDB exports connection pool statistics for db
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	return m.registerer.Register(collectors.NewDBStatsCollector(db, name))
}
