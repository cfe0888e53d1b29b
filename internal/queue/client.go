package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeScoreReview     = "reviewsentiment:score_review"
	TypeSummarizeReview = "reviewsentiment:summarize_review"
)

// Queue names
const (
	QueueScoring   = "scoring"
	QueueSummaries = "summaries"
)

// ReviewPayload identifies the review a task works on
type ReviewPayload struct {
	ReviewID string `json:"review_id"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
	}
}

// EnqueueScoreReview enqueues a sentiment scoring task for a stored review.
// A review already waiting to be scored returns asynq.ErrDuplicateTask.
func (c *Client) EnqueueScoreReview(ctx context.Context, reviewID string) (string, error) {
	return c.enqueue(ctx, TypeScoreReview, reviewID,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Queue(QueueScoring),
		asynq.Unique(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
}

// EnqueueSummarizeReview enqueues an AI summary task for a stored review
func (c *Client) EnqueueSummarizeReview(ctx context.Context, reviewID string) (string, error) {
	return c.enqueue(ctx, TypeSummarizeReview, reviewID,
		asynq.MaxRetry(10), // High retry tolerance for Ollama
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueSummaries),
		asynq.Retention(7*24*time.Hour),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType, reviewID string, opts ...asynq.Option) (string, error) {
	payloadBytes, err := json.Marshal(newReviewPayload(ctx, taskType, reviewID))
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, payloadBytes), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}

	return info.ID, nil
}

// newReviewPayload stamps the enqueue time and, when ctx carries a span,
// its trace and span IDs
func newReviewPayload(ctx context.Context, taskType, reviewID string) ReviewPayload {
	payload := ReviewPayload{
		ReviewID:   reviewID,
		EnqueuedAt: time.Now().UnixNano(),
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("review.id", reviewID),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	return payload
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
