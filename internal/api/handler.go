package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/reviewsentiment/internal/database"
	"github.com/zombar/reviewsentiment/internal/metrics"
	"github.com/zombar/reviewsentiment/internal/sentiment"
	"github.com/zombar/reviewsentiment/internal/tracing"
	"github.com/zombar/reviewsentiment/pkg/logging"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// QueueClient enqueues background work for stored reviews
type QueueClient interface {
	EnqueueScoreReview(ctx context.Context, reviewID string) (string, error)
	EnqueueSummarizeReview(ctx context.Context, reviewID string) (string, error)
}

// Options holds the optional collaborators of a Handler
type Options struct {
	KeywordLimit int
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Logger       *slog.Logger
}

// Handler handles HTTP requests
type Handler struct {
	db           *database.DB
	scorer       *sentiment.Scorer
	queue        QueueClient
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	keywordLimit int
	router       chi.Router
}

// NewHandler creates the API handler with CORS support. queue may be nil,
// in which case rescoring is unavailable and no summaries are requested.
func NewHandler(db *database.DB, scorer *sentiment.Scorer, queue QueueClient, opts Options) http.Handler {
	h := newHandler(db, scorer, queue, opts)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(h.router)
}

func newHandler(db *database.DB, scorer *sentiment.Scorer, queue QueueClient, opts Options) *Handler {
	if scorer == nil {
		scorer = sentiment.New(nil)
	}
	if opts.KeywordLimit <= 0 {
		opts.KeywordLimit = sentiment.DefaultKeywordLimit
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Handler{
		db:           db,
		scorer:       scorer,
		queue:        queue,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		logger:       opts.Logger,
		keywordLimit: opts.KeywordLimit,
		router:       chi.NewRouter(),
	}
	h.setupRoutes()

	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	r := h.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/keywords", h.handleKeywords)

		r.Post("/reviews", h.handleCreateReview)
		r.Get("/reviews/{id}", h.handleGetReview)
		r.Delete("/reviews/{id}", h.handleDeleteReview)
		r.Post("/reviews/{id}/rescore", h.handleRescoreReview)

		r.Get("/properties/{id}/reviews", h.handleListPropertyReviews)
		r.Get("/properties/{id}/sentiment", h.handlePropertySentiment)
	})
}

// handleHealth reports liveness and database reachability
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbStatus := "ok"
	if err := h.db.Conn().PingContext(ctx); err != nil {
		status, code, dbStatus = "degraded", http.StatusServiceUnavailable, err.Error()
	}

	respondJSON(w, map[string]string{
		"status":   status,
		"database": dbStatus,
		"time":     time.Now().Format(time.RFC3339),
	}, code)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Score    float64                   `json:"score"`
	Label    sentiment.Label           `json:"label"`
	Words    []sentiment.AnnotatedWord `json:"words"`
	Keywords []sentiment.Keyword       `json:"keywords"`
}

// handleAnalyze scores text synchronously without storing it
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tracing.SetSpanAttributes(r.Context(), attribute.Int("text.length", len(req.Text)))

	started := time.Now()
	result := h.scorer.AnalyzeSentiment(req.Text)
	h.metrics.ObserveAnalysis(string(result.Label), started)

	keywords := h.scorer.ExtractKeywords(req.Text, h.keywordLimit)
	h.metrics.ObserveKeywords(len(keywords))

	tracing.SetSpanAttributes(r.Context(),
		attribute.Float64("sentiment.score", result.Score),
		attribute.String("sentiment.label", string(result.Label)),
	)

	words := result.Words
	if words == nil {
		words = []sentiment.AnnotatedWord{}
	}

	respondJSON(w, analyzeResponse{
		Score:    result.Score,
		Label:    result.Label,
		Words:    words,
		Keywords: keywords,
	}, http.StatusOK)
}

type keywordsRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

type keywordsResponse struct {
	Keywords []sentiment.Keyword `json:"keywords"`
	Joined   string              `json:"joined"`
}

// handleKeywords extracts the most frequent keywords of text
func (h *Handler) handleKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Limit < 0 {
		respondError(w, "limit must not be negative", http.StatusBadRequest)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.keywordLimit
	}

	keywords := h.scorer.ExtractKeywords(req.Text, limit)
	h.metrics.ObserveKeywords(len(keywords))

	respondJSON(w, keywordsResponse{
		Keywords: keywords,
		Joined:   sentiment.JoinKeywords(keywords),
	}, http.StatusOK)
}

// decodeJSON decodes a bounded request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}

// respondInternalError logs err and sends a 500 without leaking details
func (h *Handler) respondInternalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
	tracing.RecordError(r.Context(), err)
	respondError(w, message, http.StatusInternalServerError)
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
