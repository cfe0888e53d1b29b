package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewsentiment/internal/config"
	"github.com/zombar/reviewsentiment/internal/metrics"
	"github.com/zombar/reviewsentiment/pkg/logging"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := newRegistry()
	m := metrics.New("reviewsentiment", reg)
	m.ObserveTask("reviewsentiment:score_review", "success")

	w := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	body := w.Body.String()
	for _, metric := range []string{
		"go_goroutines",
		"go_threads",
		"go_info",
		"reviewsentiment_tasks_total",
	} {
		assert.Contains(t, body, metric)
	}
}

func TestLoadLexicon(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, "info", "json")

	lex := loadLexicon(logger, config.LexiconConfig{})
	assert.True(t, lex.IsPositive("good"))

	dir := t.TempDir()
	positive := filepath.Join(dir, "positive.txt")
	require.NoError(t, os.WriteFile(positive, []byte("spacious\nquiet\n"), 0o644))

	buf.Reset()
	lex = loadLexicon(logger, config.LexiconConfig{PositivePath: positive})
	assert.True(t, lex.IsPositive("spacious"))
	assert.True(t, lex.IsNegative("bad"), "negative words fall back to defaults")
	assert.Contains(t, buf.String(), "lexicon partially loaded")
}
