package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bjmnh/chatinsights/cmd/mainconfig"
	"github.com/bjmnh/chatinsights/internal/archive"
	appconfig "github.com/bjmnh/chatinsights/internal/config"
	"github.com/bjmnh/chatinsights/internal/insight"
	"github.com/bjmnh/chatinsights/internal/observability/metrics"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting insights worker", "env", cfg.Env, "workers", cfg.WorkerCount)

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

	llm, err := mainconfig.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}

	var source archive.Source
	if cfg.ArchiveBucket != "" {
		source = archive.NewS3Source(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket)
	} else {
		source = archive.NewFSSource(cfg.ArchiveDir)
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

	queue := insight.NewSQSQueue(awssqs.NewFromConfig(awsCfg), cfg.InsightsQueueURL)
	worker := insight.NewWorker(pipeline, queue, jobStore, source, logger,
		insight.WithWorkerCount(cfg.WorkerCount),
		insight.WithProgressCache(progressCache),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	worker.Start(runCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down insights worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("insights worker stopped")
	case <-doneCtx.Done():
		logger.Error("insights worker shutdown timed out", "error", doneCtx.Err())
	}
}
