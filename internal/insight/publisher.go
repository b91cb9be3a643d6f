package insight

import (
	"context"
	"fmt"

	"github.com/bjmnh/chatinsights/pkg/logging"
)

// Publisher records a pending job and hands the analysis request to the
// queue for a worker to pick up.
type Publisher struct {
	queue  queueClient
	jobs   JobStore
	logger *logging.Logger
}

func NewPublisher(queue queueClient, jobs JobStore, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("insight: queue cannot be nil")
	}
	if jobs == nil {
		panic("insight: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger.Component("publisher")}
}

// Enqueue creates the job record and publishes the analysis request.
// The job row exists before the message is visible, so a fast worker
// never races job creation.
func (p *Publisher) Enqueue(ctx context.Context, req AnalysisRequest) (AnalysisRequest, error) {
	req, body, err := encodeRequest(req)
	if err != nil {
		return AnalysisRequest{}, err
	}

	if err := p.jobs.CreateJob(ctx, req.JobID, req.UserID); err != nil {
		return AnalysisRequest{}, err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		if storeErr := p.jobs.MarkFailed(ctx, req.JobID, "failed to enqueue analysis request"); storeErr != nil {
			p.logger.Error("failed to mark unenqueued job", "error", storeErr, "job_id", req.JobID)
		}
		return AnalysisRequest{}, fmt.Errorf("insight: enqueue analysis request: %w", err)
	}

	p.logger.Info("analysis request enqueued", "job_id", req.JobID, "user_id", req.UserID)
	return req, nil
}
