package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/reviewsentiment/internal/database"
	"github.com/zombar/reviewsentiment/internal/models"
	"github.com/zombar/reviewsentiment/internal/sentiment"
	"github.com/zombar/reviewsentiment/internal/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type createReviewRequest struct {
	PropertyID string `json:"property_id"`
	BookingID  string `json:"booking_id"`
	StudentID  string `json:"student_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

func (req *createReviewRequest) validate() error {
	switch {
	case strings.TrimSpace(req.PropertyID) == "":
		return errors.New("property_id is required")
	case strings.TrimSpace(req.Comment) == "":
		return errors.New("comment is required")
	case req.Rating < 1 || req.Rating > 5:
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}

// handleCreateReview scores a new review and stores it
func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()

	started := time.Now()
	result := h.scorer.AnalyzeSentiment(req.Comment)
	h.metrics.ObserveAnalysis(string(result.Label), started)

	keywords := h.scorer.ExtractKeywords(req.Comment, h.keywordLimit)
	h.metrics.ObserveKeywords(len(keywords))

	now := time.Now().UTC()
	label := string(result.Label)
	review := &models.Review{
		ID:             id,
		PropertyID:     req.PropertyID,
		BookingID:      req.BookingID,
		StudentID:      req.StudentID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		SentimentScore: &result.Score,
		SentimentLabel: &label,
		Keywords:       sentiment.JoinKeywords(keywords),
		CreatedAt:      now,
		UpdatedAt:      now,
		ScoredAt:       &now,
	}

	err := h.db.CreateReview(review)
	if errors.Is(err, database.ErrAlreadyExists) {
		respondError(w, "Review already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.respondInternalError(w, r, "Failed to save review", err)
		return
	}
	if h.metrics != nil {
		h.metrics.ReviewsSaved.Inc()
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("review.id", id),
		attribute.String("property.id", req.PropertyID),
		attribute.String("sentiment.label", label),
	)

	if h.queue != nil {
		if _, err := h.queue.EnqueueSummarizeReview(r.Context(), id); err != nil {
			// Summaries are best effort
			h.logger.Warn("failed to enqueue review summary", "review_id", id, "error", err)
		}
	}

	respondJSON(w, review, http.StatusCreated)
}

// handleGetReview returns one review
func (h *Handler) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	review, err := h.db.GetReview(id)
	if isNotFound(err) {
		respondError(w, "Review not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondInternalError(w, r, "Failed to get review", err)
		return
	}

	respondJSON(w, review, http.StatusOK)
}

// handleDeleteReview deletes one review
func (h *Handler) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.db.DeleteReview(id)
	if isNotFound(err) {
		respondError(w, "Review not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondInternalError(w, r, "Failed to delete review", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRescoreReview queues a stored review for scoring again, e.g. after
// the lexicon changed
func (h *Handler) handleRescoreReview(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, "Queue is not configured", http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.db.GetReview(id); err != nil {
		if isNotFound(err) {
			respondError(w, "Review not found", http.StatusNotFound)
			return
		}
		h.respondInternalError(w, r, "Failed to get review", err)
		return
	}

	taskID, err := h.queue.EnqueueScoreReview(r.Context(), id)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		respondError(w, "Review is already queued for scoring", http.StatusConflict)
		return
	}
	if err != nil {
		h.respondInternalError(w, r, "Failed to enqueue rescore", err)
		return
	}

	respondJSON(w, map[string]string{
		"review_id": id,
		"task_id":   taskID,
		"status":    "queued",
	}, http.StatusAccepted)
}

// handleListPropertyReviews lists a property's reviews, newest first
func (h *Handler) handleListPropertyReviews(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")

	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respondError(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondError(w, "offset must not be negative", http.StatusBadRequest)
		return
	}

	reviews, err := h.db.ListReviewsByProperty(propertyID, limit, offset)
	if err != nil {
		h.respondInternalError(w, r, "Failed to list reviews", err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"property_id": propertyID,
		"reviews":     reviews,
		"limit":       limit,
		"offset":      offset,
	}, http.StatusOK)
}

type propertySentimentResponse struct {
	*models.PropertySentiment
	Label sentiment.Label `json:"label"`
}

// handlePropertySentiment aggregates the sentiment of a property's reviews
func (h *Handler) handlePropertySentiment(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")

	summary, err := h.db.PropertySentimentSummary(propertyID)
	if err != nil {
		h.respondInternalError(w, r, "Failed to summarise property sentiment", err)
		return
	}

	respondJSON(w, propertySentimentResponse{
		PropertySentiment: summary,
		Label:             sentiment.LabelFor(summary.AverageScore),
	}, http.StatusOK)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
