package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	progressKeyPrefix = "insights:progress:"
	progressTTL       = 24 * time.Hour
)

// ProgressSnapshot is the cheap, frequently polled view of a running job.
type ProgressSnapshot struct {
	JobID     string    `json:"jobId"`
	Stage     Stage     `json:"stage"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressCache keeps live job progress in Redis so status polls never
// hit Postgres.
type ProgressCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewProgressCache(client *redis.Client) *ProgressCache {
	if client == nil {
		panic("insight: NewProgressCache requires a redis client")
	}
	return &ProgressCache{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func progressKey(jobID string) string {
	return progressKeyPrefix + jobID
}

func (c *ProgressCache) Set(ctx context.Context, jobID string, stage Stage, percent int) error {
	snap := ProgressSnapshot{JobID: jobID, Stage: stage, Percent: percent, UpdatedAt: c.now()}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("insight: encode progress for job %s: %w", jobID, err)
	}
	if err := c.client.Set(ctx, progressKey(jobID), raw, progressTTL).Err(); err != nil {
		return fmt.Errorf("insight: cache progress for job %s: %w", jobID, err)
	}
	return nil
}

// Get returns the cached snapshot, or (nil, nil) when none exists.
func (c *ProgressCache) Get(ctx context.Context, jobID string) (*ProgressSnapshot, error) {
	raw, err := c.client.Get(ctx, progressKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insight: read progress for job %s: %w", jobID, err)
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("insight: decode progress for job %s: %w", jobID, err)
	}
	return &snap, nil
}

func (c *ProgressCache) Clear(ctx context.Context, jobID string) error {
	if err := c.client.Del(ctx, progressKey(jobID)).Err(); err != nil {
		return fmt.Errorf("insight: clear progress for job %s: %w", jobID, err)
	}
	return nil
}
