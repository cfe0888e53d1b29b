package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/reviewsentiment/internal/database"
	"github.com/zombar/reviewsentiment/internal/ollama"
)

// Task outcome labels recorded in metrics
const (
	statusSuccess = "success"
	statusRetry   = "retry"
	statusFailed  = "failed"
)

// handleScoreReview scores the comment of a stored review
func (w *Worker) handleScoreReview(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		w.logger.Error("failed to unmarshal task payload", "task_type", t.Type(), "error", err)
		w.processor.metrics.ObserveTask(t.Type(), statusFailed)
		return err
	}

	ctx, span := startTaskSpan(ctx, t.Type(), payload)
	defer span.End()

	err = w.processor.ScoreReview(ctx, payload.ReviewID)
	switch {
	case err == nil:
		w.processor.metrics.ObserveTask(t.Type(), statusSuccess)
		return nil
	case errors.Is(err, database.ErrNotFound):
		// Deleted between enqueue and processing
		w.logger.Warn("review no longer exists, dropping task", "review_id", payload.ReviewID)
		w.processor.metrics.ObserveTask(t.Type(), statusFailed)
		span.SetStatus(codes.Error, "review not found")
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	default:
		w.processor.metrics.ObserveTask(t.Type(), statusRetry)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}

// handleSummarizeReview asks Ollama for a summary of a stored review
func (w *Worker) handleSummarizeReview(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		w.logger.Error("failed to unmarshal task payload", "task_type", t.Type(), "error", err)
		w.processor.metrics.ObserveTask(t.Type(), statusFailed)
		return err
	}

	ctx, span := startTaskSpan(ctx, t.Type(), payload)
	defer span.End()

	retryCount, _ := asynq.GetRetryCount(ctx)

	err = w.processor.SummarizeReview(ctx, payload.ReviewID)
	switch {
	case err == nil:
		w.processor.metrics.ObserveTask(t.Type(), statusSuccess)
		return nil
	case errors.Is(err, database.ErrNotFound):
		w.logger.Warn("review no longer exists, dropping task", "review_id", payload.ReviewID)
		w.processor.metrics.ObserveTask(t.Type(), statusFailed)
		span.SetStatus(codes.Error, "review not found")
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	case ollama.IsRetriable(err):
		w.logger.Warn("retriable Ollama error, will retry",
			"review_id", payload.ReviewID,
			"error", err,
			"retry_count", retryCount,
		)
		w.processor.metrics.ObserveTask(t.Type(), statusRetry)
		span.RecordError(err)
		return err
	default:
		w.logger.Error("permanent error summarising review",
			"review_id", payload.ReviewID,
			"error", err,
		)
		w.processor.metrics.ObserveTask(t.Type(), statusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
}

// decodePayload parses a task payload; malformed payloads are never retried
func decodePayload(t *asynq.Task) (ReviewPayload, error) {
	var payload ReviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReviewID == "" {
		return payload, fmt.Errorf("invalid task payload: missing review_id: %w", asynq.SkipRetry)
	}
	return payload, nil
}

// startTaskSpan starts a consumer span for a task. When the payload carries
// the enqueuing span's IDs the new span joins that trace.
func startTaskSpan(ctx context.Context, taskType string, payload ReviewPayload) (context.Context, trace.Span) {
	var queueWait time.Duration
	if payload.EnqueuedAt > 0 {
		queueWait = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	if remote, ok := remoteSpanContext(payload); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}

	ctx, span := otel.Tracer("reviewsentiment").Start(ctx, "asynq.task."+taskType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("review.id", payload.ReviewID),
			attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWait.Seconds()),
	))
	return ctx, span
}

func remoteSpanContext(payload ReviewPayload) (trace.SpanContext, bool) {
	if payload.TraceID == "" || payload.SpanID == "" {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(payload.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(payload.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}
