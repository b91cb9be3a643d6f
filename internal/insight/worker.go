package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bjmnh/chatinsights/internal/archive"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultReceiveBatch = 1
	maxWaitSeconds      = 20
	maxReceiveBatch     = 10
	deleteTimeout       = 5 * time.Second
	maxPollBackoff      = 5 * time.Second
)

// Worker consumes analysis requests and runs the pipeline for each.
type Worker struct {
	pipeline *Pipeline
	queue    queueClient
	jobs     JobStore
	source   archive.Source
	progress *ProgressCache
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	progress         *ProgressCache
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatch {
			size = maxReceiveBatch
		}
		cfg.receiveBatchSize = size
	}
}

// WithProgressCache mirrors progress updates into Redis for cheap polls.
func WithProgressCache(cache *ProgressCache) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.progress = cache
	}
}

func NewWorker(pipeline *Pipeline, queue queueClient, jobs JobStore, source archive.Source, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if pipeline == nil {
		panic("insight: pipeline cannot be nil")
	}
	if queue == nil {
		panic("insight: queue cannot be nil")
	}
	if jobs == nil {
		panic("insight: job store cannot be nil")
	}
	if source == nil {
		panic("insight: archive source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultReceiveBatch,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		pipeline: pipeline,
		queue:    queue,
		jobs:     jobs,
		source:   source,
		progress: cfg.progress,
		logger:   logger.Component("worker"),
		cfg:      cfg,
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("insight worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("insight worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive analysis requests", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < maxPollBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	req, err := decodeRequest(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode analysis request", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	log := w.logger.With("job_id", req.JobID, "user_id", req.UserID)
	log.Info("processing analysis request")

	if err := w.jobs.MarkProcessing(ctx, req.JobID); err != nil {
		log.Error("failed to mark job processing", "error", err)
		if errors.Is(err, ErrJobNotFound) {
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
		}
		// Transient store errors leave the message for redelivery.
		return
	}

	raw, err := w.source.FetchArchive(ctx, req.JobID)
	if err != nil {
		log.Error("failed to fetch archive", "error", err)
		w.fail(ctx, req.JobID, "archive unavailable")
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	bundle, err := w.pipeline.Run(ctx, raw, w.progressFunc(ctx, req.JobID))
	if err != nil {
		log.Error("analysis pipeline failed", "error", err)
		w.fail(ctx, req.JobID, failureMessage(err))
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if err := w.jobs.MarkCompleted(ctx, req.JobID, bundle); err != nil {
		log.Error("failed to mark job completed", "error", err)
	} else {
		log.Info("analysis complete", "reports", len(bundle.Reports), "report_errors", len(bundle.ProcessingErrors))
	}
	if w.progress != nil {
		if err := w.progress.Clear(context.Background(), req.JobID); err != nil {
			log.Warn("failed to clear progress cache", "error", err)
		}
	}
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// progressFunc persists checkpoints to the job store and mirrors them
// into Redis. Persistence errors only log; progress is advisory.
func (w *Worker) progressFunc(ctx context.Context, jobID string) ProgressFunc {
	return func(stage Stage, percent int) {
		if err := w.jobs.SetProgress(ctx, jobID, stage, percent); err != nil {
			w.logger.Warn("failed to persist progress", "error", err, "job_id", jobID)
		}
		if w.progress != nil {
			if err := w.progress.Set(ctx, jobID, stage, percent); err != nil {
				w.logger.Warn("failed to cache progress", "error", err, "job_id", jobID)
			}
		}
	}
}

func (w *Worker) fail(ctx context.Context, jobID, message string) {
	if err := w.jobs.MarkFailed(ctx, jobID, message); err != nil {
		w.logger.Error("failed to mark job failed", "error", err, "job_id", jobID)
	}
	if w.progress != nil {
		if err := w.progress.Clear(context.Background(), jobID); err != nil {
			w.logger.Warn("failed to clear progress cache", "error", err, "job_id", jobID)
		}
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete analysis request", "error", err)
	}
}

// failureMessage maps internal failures to the message surfaced to the
// user without leaking driver or provider detail.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, archive.ErrMalformedArchive):
		return "archive could not be parsed"
	case errors.Is(err, ErrNoInsights):
		return "no analyzable conversations found in archive"
	default:
		return "analysis failed"
	}
}
