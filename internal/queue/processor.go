package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/reviewsentiment/internal/database"
	"github.com/zombar/reviewsentiment/internal/metrics"
	"github.com/zombar/reviewsentiment/internal/sentiment"
	"github.com/zombar/reviewsentiment/internal/tracing"
)

// Summarizer produces a short summary of a review comment
type Summarizer interface {
	SummarizeReview(ctx context.Context, comment string) (string, error)
}

// Processor scores and summarises stored reviews. The worker runs it for
// queued tasks and the scheduler runs it inline when no queue is configured.
type Processor struct {
	db           *database.DB
	scorer       *sentiment.Scorer
	summarizer   Summarizer
	metrics      *metrics.Metrics
	keywordLimit int
	logger       *slog.Logger
}

// NewProcessor creates a processor. summarizer and m may be nil.
func NewProcessor(db *database.DB, scorer *sentiment.Scorer, summarizer Summarizer, m *metrics.Metrics, keywordLimit int) *Processor {
	if scorer == nil {
		scorer = sentiment.New(nil)
	}
	return &Processor{
		db:           db,
		scorer:       scorer,
		summarizer:   summarizer,
		metrics:      m,
		keywordLimit: keywordLimit,
		logger:       slog.Default().With("component", "processor"),
	}
}

// ScoreReview analyses the comment of a stored review and saves its
// sentiment score, label and keywords. A missing review returns
// database.ErrNotFound.
func (p *Processor) ScoreReview(ctx context.Context, reviewID string) error {
	ctx, span := tracing.StartSpan(ctx, "review.score", attribute.String("review.id", reviewID))
	defer span.End()

	review, err := p.db.GetReview(reviewID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("review %s: %w", reviewID, err)
	}

	started := time.Now()
	result := p.scorer.AnalyzeSentiment(review.Comment)
	p.metrics.ObserveAnalysis(string(result.Label), started)

	keywords := p.scorer.ExtractKeywords(review.Comment, p.keywordLimit)
	p.metrics.ObserveKeywords(len(keywords))

	if err := p.db.UpdateSentiment(reviewID, result.Score, string(result.Label), sentiment.JoinKeywords(keywords)); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("review %s: %w", reviewID, err)
	}

	tracing.SetSpanAttributes(ctx,
		attribute.Float64("sentiment.score", result.Score),
		attribute.String("sentiment.label", string(result.Label)),
		attribute.Int("keywords.count", len(keywords)),
	)

	p.logger.Info("review scored",
		"review_id", reviewID,
		"score", result.Score,
		"label", result.Label,
		"keywords", len(keywords),
	)
	return nil
}

// SummarizeReview generates and stores a summary of a stored review. It is
// a no-op when the processor has no summarizer.
func (p *Processor) SummarizeReview(ctx context.Context, reviewID string) error {
	if p.summarizer == nil {
		p.logger.Debug("no summarizer configured, skipping", "review_id", reviewID)
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "review.summarize", attribute.String("review.id", reviewID))
	defer span.End()

	review, err := p.db.GetReview(reviewID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("review %s: %w", reviewID, err)
	}

	summary, err := p.summarizer.SummarizeReview(ctx, review.Comment)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to summarise review %s: %w", reviewID, err)
	}

	if err := p.db.UpdateSummary(reviewID, summary); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("review %s: %w", reviewID, err)
	}

	p.logger.Info("review summarised", "review_id", reviewID, "summary_length", len(summary))
	return nil
}

// HasSummarizer reports whether summaries can be generated
func (p *Processor) HasSummarizer() bool {
	return p.summarizer != nil
}
