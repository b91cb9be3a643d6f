package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bjmnh/chatinsights/cmd/mainconfig"
	"github.com/bjmnh/chatinsights/internal/api/router"
	"github.com/bjmnh/chatinsights/internal/archive"
	appconfig "github.com/bjmnh/chatinsights/internal/config"
	"github.com/bjmnh/chatinsights/internal/entitlement"
	"github.com/bjmnh/chatinsights/internal/http/handlers"
	"github.com/bjmnh/chatinsights/internal/insight"
	"github.com/bjmnh/chatinsights/internal/observability/metrics"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatinsights API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	jobStore := insight.NewPostgresJobStore(pool)
	if err := jobStore.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure job schema", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	progressCache := insight.NewProgressCache(redis.NewClient(redisOpts))

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var publisher *insight.Publisher
	var embeddedWorker *insight.Worker
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	if cfg.UseMemoryQueue {
		// Development mode: run the worker in-process against a channel
		// queue and local archive files.
		memQueue := insight.NewMemoryQueue(64)
		publisher = insight.NewPublisher(memQueue, jobStore, logger)

		llm, err := mainconfig.BuildLLMClient(ctx, cfg, awsCfg, logger)
		if err != nil {
			logger.Error("failed to build LLM client", "error", err)
			os.Exit(1)
		}
		pipelineMetrics := metrics.NewPipelineMetrics(nil)
		extractor := insight.NewExtractor(llm, insight.ExtractorConfig{
			BatchSize:        cfg.ExtractionBatchSize,
			BatchDelay:       cfg.ExtractionBatchDelay,
			MaxConversations: cfg.MaxConversations,
			PromptCharBudget: cfg.PromptCharBudget,
			CallTimeout:      cfg.ExtractionTimeout,
		}, logger, pipelineMetrics)
		synthesizer := insight.NewSynthesizer(llm, insight.SynthesizerConfig{
			CallTimeout: cfg.SynthesisTimeout,
		}, logger, pipelineMetrics)
		pipeline := insight.NewPipeline(extractor, synthesizer, logger, pipelineMetrics)

		embeddedWorker = insight.NewWorker(
			pipeline, memQueue, jobStore, archive.NewFSSource(cfg.ArchiveDir), logger,
			insight.WithWorkerCount(cfg.WorkerCount),
			insight.WithProgressCache(progressCache),
		)
		embeddedWorker.Start(workerCtx)
	} else {
		sqsQueue := insight.NewSQSQueue(awssqs.NewFromConfig(awsCfg), cfg.InsightsQueueURL)
		publisher = insight.NewPublisher(sqsQueue, jobStore, logger)
	}

	var checker entitlement.Checker
	if cfg.AllowAllUsers {
		checker = entitlement.StaticChecker{Allow: true}
	} else {
		pgChecker := entitlement.NewPostgresChecker(pool)
		if err := pgChecker.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure entitlement schema", "error", err)
			os.Exit(1)
		}
		checker = pgChecker
	}

	insightsHandler := handlers.NewInsightsHandler(publisher, jobStore, progressCache, checker, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Insights:           insightsHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: []string{"*"},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down API server...")
	workerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if embeddedWorker != nil {
		embeddedWorker.Wait()
	}
	logger.Info("API server stopped")
}
