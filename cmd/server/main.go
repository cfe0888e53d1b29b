package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombar/reviewsentiment/internal/api"
	"github.com/zombar/reviewsentiment/internal/config"
	"github.com/zombar/reviewsentiment/internal/database"
	"github.com/zombar/reviewsentiment/internal/metrics"
	"github.com/zombar/reviewsentiment/internal/ollama"
	"github.com/zombar/reviewsentiment/internal/queue"
	"github.com/zombar/reviewsentiment/internal/scheduler"
	"github.com/zombar/reviewsentiment/internal/sentiment"
	"github.com/zombar/reviewsentiment/internal/tracing"
	"github.com/zombar/reviewsentiment/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("REVIEWSENTIMENT_CONFIG"), "Path to config file (env: REVIEWSENTIMENT_CONFIG)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("reviewsentiment exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("reviewsentiment service initializing", "version", "1.0.0")

	if cfg.Tracing.Enabled {
		tp, err := tracing.Setup(context.Background(), cfg.Tracing.ServiceName, tracing.ExporterConfig{
			Endpoint: cfg.Tracing.OTLPEndpoint,
			Insecure: cfg.Tracing.Insecure,
		})
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("error shutting down tracer", "error", err)
				}
			}()
			logger.Info("tracing initialized",
				"service_name", cfg.Tracing.ServiceName,
				"otlp_endpoint", cfg.Tracing.OTLPEndpoint,
			)
		}
	}

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	registry := newRegistry()
	m := metrics.New("reviewsentiment", registry)
	if err := m.RegisterDB(db.Conn(), cfg.Database.Driver); err != nil {
		logger.Warn("failed to register database metrics", "error", err)
	}

	scorer := sentiment.New(loadLexicon(logger, cfg.Lexicon))

	var summarizer queue.Summarizer
	if cfg.Ollama.Enabled {
		client, err := ollama.New(cfg.Ollama.URL, cfg.Ollama.Model)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, summaries disabled",
				"error", err,
				"ollama_url", cfg.Ollama.URL,
			)
		} else {
			logger.Info("Ollama client initialized", "model", client.Model(), "url", cfg.Ollama.URL)
			summarizer = client
		}
	}

	processor := queue.NewProcessor(db, scorer, summarizer, m, cfg.Keywords.Limit)

	// Interfaces stay nil unless the queue is enabled
	var (
		queueClient api.QueueClient
		enqueuer    scheduler.Enqueuer
		worker      *queue.Worker
	)
	if cfg.Queue.Enabled {
		client := queue.NewClient(queue.ClientConfig{RedisAddr: cfg.Queue.RedisAddr})
		defer client.Close()
		queueClient, enqueuer = client, client

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   cfg.Queue.RedisAddr,
			Concurrency: cfg.Queue.Concurrency,
		}, processor)
		if err := worker.Start(); err != nil {
			return err
		}
		defer worker.Shutdown()
	}

	var sweeper *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweeper, err = scheduler.New(scheduler.Config{
			Spec:      cfg.Scheduler.Spec,
			BatchSize: cfg.Scheduler.BatchSize,
		}, db, enqueuer, processor)
		if err != nil {
			return err
		}
		sweeper.Start()
	}

	apiHandler := api.NewHandler(db, scorer, queueClient, api.Options{
		KeywordLimit: cfg.Keywords.Limit,
		Metrics:      m,
		Gatherer:     registry,
		Logger:       logger,
	})

	// Middleware chain: tracing -> HTTP logging -> handlers, so request logs carry trace IDs
	handler := tracing.HTTPMiddleware(cfg.Tracing.ServiceName)(
		logging.HTTPLoggingMiddleware(logger)(apiHandler),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("reviewsentiment service starting",
			"port", cfg.Server.Port,
			"database_driver", cfg.Database.Driver,
			"queue_enabled", cfg.Queue.Enabled,
			"scheduler_enabled", cfg.Scheduler.Enabled,
			"ollama_enabled", summarizer != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newRegistry returns a registry with the Go runtime and process collectors
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// loadLexicon reads the configured word lists. Missing or empty lists fall
// back to the built-in words for that polarity.
func loadLexicon(logger *slog.Logger, cfg config.LexiconConfig) *sentiment.Lexicon {
	if cfg.PositivePath == "" && cfg.NegativePath == "" {
		logger.Info("using built-in lexicon")
		return sentiment.DefaultLexicon()
	}

	lex, err := sentiment.LoadLexicon(cfg.PositivePath, cfg.NegativePath)
	if err != nil {
		logger.Warn("lexicon partially loaded, using built-in words where missing", "error", err)
	}
	positive, negative := lex.Size()
	logger.Info("lexicon loaded", "positive_words", positive, "negative_words", negative)
	return lex
}
