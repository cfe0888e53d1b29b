package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTaskTypeConstants(t *testing.T) {
	assert.Equal(t, "reviewsentiment:score_review", TypeScoreReview)
	assert.Equal(t, "reviewsentiment:summarize_review", TypeSummarizeReview)
}

func TestNewReviewPayloadWithoutSpan(t *testing.T) {
	before := time.Now().UnixNano()
	payload := newReviewPayload(context.Background(), TypeScoreReview, "review-1")

	assert.Equal(t, "review-1", payload.ReviewID)
	assert.Empty(t, payload.TraceID)
	assert.Empty(t, payload.SpanID)
	assert.GreaterOrEqual(t, payload.EnqueuedAt, before)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "trace_id")
}

func TestNewReviewPayloadCarriesSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "enqueue")
	defer span.End()

	payload := newReviewPayload(ctx, TypeSummarizeReview, "review-2")
	assert.Equal(t, span.SpanContext().TraceID().String(), payload.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), payload.SpanID)
}

func TestDecodePayload(t *testing.T) {
	payload, err := decodePayload(asynq.NewTask(TypeScoreReview, []byte(`{"review_id":"r1","enqueued_at":5}`)))
	require.NoError(t, err)
	assert.Equal(t, "r1", payload.ReviewID)
	assert.Equal(t, int64(5), payload.EnqueuedAt)

	_, err = decodePayload(asynq.NewTask(TypeScoreReview, []byte(`not json`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = decodePayload(asynq.NewTask(TypeScoreReview, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRemoteSpanContext(t *testing.T) {
	sc, ok := remoteSpanContext(ReviewPayload{
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:  "00f067aa0ba902b7",
	})
	require.True(t, ok)
	assert.True(t, sc.IsRemote())
	assert.True(t, sc.IsSampled())

	_, ok = remoteSpanContext(ReviewPayload{TraceID: "nothex", SpanID: "00f067aa0ba902b7"})
	assert.False(t, ok)

	_, ok = remoteSpanContext(ReviewPayload{})
	assert.False(t, ok)
}

func TestRetryDelay(t *testing.T) {
	testErr := errors.New("connection refused")

	summaryTask := asynq.NewTask(TypeSummarizeReview, []byte(`{}`))
	for i, expected := range summaryRetryDelays {
		assert.Equal(t, expected, retryDelay(i, testErr, summaryTask), "summary retry %d", i)
	}
	assert.Equal(t, 4*time.Hour, retryDelay(50, testErr, summaryTask), "capped at last delay")

	scoreTask := asynq.NewTask(TypeScoreReview, []byte(`{}`))
	assert.Equal(t, 10*time.Second, retryDelay(0, testErr, scoreTask))
	assert.Equal(t, 5*time.Minute, retryDelay(2, testErr, scoreTask))
	assert.Equal(t, 5*time.Minute, retryDelay(9, testErr, scoreTask))
}

func TestQueuePriorities(t *testing.T) {
	assert.Greater(t, queuePriorities[QueueScoring], queuePriorities[QueueSummaries],
		"scoring must be preferred over summaries")
}
