package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

// queuePriorities weights the named queues; higher value means higher priority
var queuePriorities = map[string]int{
	QueueScoring:   6, // Lexicon scoring is cheap and user-visible
	QueueSummaries: 2, // Ollama summaries can wait
}

// Retry schedules per task type
var (
	scoreRetryDelays = []time.Duration{
		10 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
	}

	// 30s, 1m, 2m, 5m, 10m, 20m, 30m, 1h, 2h, 4h
	summaryRetryDelays = []time.Duration{
		30 * time.Second,
		1 * time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		20 * time.Minute,
		30 * time.Minute,
		1 * time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}
)

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	processor   *Processor
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker running tasks through processor
func NewWorker(cfg WorkerConfig, processor *Processor) *Worker {
	logger := slog.Default().With("component", "worker")

	serverCfg := asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         queuePriorities,
		StrictPriority: false,
		RetryDelayFunc: retryDelay,

		// Graceful shutdown timeout
		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
		Logger: newAsynqLogger(logger),
	}

	w := &Worker{
		server:      asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, serverCfg),
		mux:         asynq.NewServeMux(),
		processor:   processor,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeScoreReview, w.handleScoreReview)
	w.mux.HandleFunc(TypeSummarizeReview, w.handleSummarizeReview)
}

// Start begins processing tasks in the background
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
		"summaries", w.processor.HasSummarizer(),
	)

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// retryDelay backs summary tasks off aggressively since Ollama may be
// restarting or loading a model; score tasks retry on a short schedule
func retryDelay(n int, _ error, task *asynq.Task) time.Duration {
	delays := scoreRetryDelays
	if task.Type() == TypeSummarizeReview {
		delays = summaryRetryDelays
	}
	if n < 0 {
		n = 0
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}

// asynqLogger adapts slog to the asynq.Logger interface
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With("source", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
