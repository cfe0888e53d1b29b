// Package scheduler periodically picks up reviews that were stored without a
// sentiment score and gets them scored.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/zombar/reviewsentiment/internal/database"
)

// DefaultSpec runs the sweep every five minutes
const DefaultSpec = "@every 5m"

// Enqueuer queues a scoring task for a review
type Enqueuer interface {
	EnqueueScoreReview(ctx context.Context, reviewID string) (string, error)
}

// Scorer scores a stored review in-process
type Scorer interface {
	ScoreReview(ctx context.Context, reviewID string) error
}

// Config controls the sweep
type Config struct {
	Spec      string
	BatchSize int
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Found    int
	Queued   int
	Scored   int
	Skipped  int
	Failures int
}

// Scheduler runs the unscored-review sweep on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	db        *database.DB
	enqueuer  Enqueuer
	scorer    Scorer
	batchSize int
	spec      string
	logger    *slog.Logger
}

// New creates a scheduler. Unscored reviews are enqueued when enqueuer is
// non-nil and scored inline by scorer otherwise; at least one is required.
func New(cfg Config, db *database.DB, enqueuer Enqueuer, scorer Scorer) (*Scheduler, error) {
	if enqueuer == nil && scorer == nil {
		return nil, errors.New("scheduler needs an enqueuer or a scorer")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}

	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	s := &Scheduler{
		// Overlapping sweeps would pick up the same rows
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		db:        db,
		enqueuer:  enqueuer,
		scorer:    scorer,
		batchSize: cfg.BatchSize,
		spec:      cfg.Spec,
		logger:    slog.Default().With("component", "scheduler"),
	}
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.run))

	return s, nil
}

// Start starts the cron scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("review sweep scheduled",
		"spec", s.spec,
		"batch_size", s.batchSize,
		"mode", s.mode(),
		"next_run", s.NextRun(),
	)
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a sweep still running")
	}
	s.logger.Info("review sweep stopped")
}

// NextRun returns when the sweep fires next
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now())
}

func (s *Scheduler) run() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.logger.Error("review sweep failed", "error", err)
	}
}

// Sweep handles one batch of unscored reviews, oldest first
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	reviews, err := s.db.ListUnscoredReviews(s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list unscored reviews: %w", err)
	}
	result.Found = len(reviews)

	for _, review := range reviews {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if s.enqueuer != nil {
			_, err := s.enqueuer.EnqueueScoreReview(ctx, review.ID)
			switch {
			case err == nil:
				result.Queued++
			case errors.Is(err, asynq.ErrDuplicateTask):
				result.Skipped++
			default:
				result.Failures++
				s.logger.Warn("failed to enqueue review", "review_id", review.ID, "error", err)
			}
			continue
		}

		if err := s.scorer.ScoreReview(ctx, review.ID); err != nil {
			result.Failures++
			s.logger.Warn("failed to score review", "review_id", review.ID, "error", err)
			continue
		}
		result.Scored++
	}

	if result.Found > 0 {
		s.logger.Info("review sweep finished",
			"found", result.Found,
			"queued", result.Queued,
			"scored", result.Scored,
			"skipped", result.Skipped,
			"failures", result.Failures,
		)
	}
	return result, nil
}

func (s *Scheduler) mode() string {
	if s.enqueuer != nil {
		return "queue"
	}
	return "inline"
}
