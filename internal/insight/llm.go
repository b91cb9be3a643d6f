package insight

import "context"

// Tier selects which model a request should run on. Extraction runs on the
// fast tier, synthesis on the powerful tier; the tier-to-model mapping lives
// in each provider client.
type Tier string

const (
	TierFast     Tier = "fast"
	TierPowerful Tier = "powerful"
)

// TokenUsage accumulates token accounting across calls.
type TokenUsage struct {
	InputTokens  int32 `json:"inputTokens"`
	OutputTokens int32 `json:"outputTokens"`
	TotalTokens  int32 `json:"totalTokens"`
}

// Add merges usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// LLMRequest is a single JSON-mode completion request. Prompts here always
// instruct the model to return a JSON object; providers enable native JSON
// output modes where the API supports them.
type LLMRequest struct {
	Tier        Tier
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// LLMResponse carries the raw model text plus usage metadata.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the invocation boundary to a model provider. The pipeline
// treats it as a JSON-in-text-out function; auth and transport are provider
// configuration.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
