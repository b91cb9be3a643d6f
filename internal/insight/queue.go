package insight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// queueClient abstracts the delivery substrate for analysis requests so
// the worker runs identically against SQS and the in-memory queue.
type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// AnalysisRequest asks the worker to run the insight pipeline for one
// uploaded archive.
type AnalysisRequest struct {
	RequestID string `json:"requestId"`
	JobID     string `json:"jobId"`
	UserID    string `json:"userId"`
}

func encodeRequest(req AnalysisRequest) (AnalysisRequest, string, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return AnalysisRequest{}, "", fmt.Errorf("insight: encode analysis request: %w", err)
	}
	return req, string(body), nil
}

func decodeRequest(body string) (AnalysisRequest, error) {
	var req AnalysisRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return AnalysisRequest{}, fmt.Errorf("insight: decode analysis request: %w", err)
	}
	if req.JobID == "" || req.UserID == "" {
		return AnalysisRequest{}, fmt.Errorf("insight: analysis request missing job or user ID")
	}
	return req, nil
}
