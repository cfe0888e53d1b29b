package metrics

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestObserveAnalysis(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("reviewsentiment", reg)

	m.ObserveAnalysis("positive", time.Now())
	m.ObserveAnalysis("positive", time.Now())
	m.ObserveAnalysis("negative", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("negative")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AnalysisDuration))
}

func TestObserveKeywordsAndTasks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("reviewsentiment", reg)

	m.ObserveKeywords(3)
	m.ObserveKeywords(2)
	m.ObserveTask("score_review", "success")

	assert.Equal(t, 5.0, testutil.ToFloat64(m.KeywordsExtracted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("score_review", "success")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("neutral", time.Now())
		m.ObserveKeywords(1)
		m.ObserveTask("x", "y")
	})
}

func TestRegisterDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("reviewsentiment", reg)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, m.RegisterDB(db, "reviews"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "go_sql_open_connections" {
			found = true
		}
	}
	assert.True(t, found, "db stats collector not registered")
}
