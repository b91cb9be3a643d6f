package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements LLMClient using the OpenAI chat completions API
// with JSON response format enforced.
type OpenAIClient struct {
	client        chatCompleter
	fastModel     string
	powerfulModel string
}

// NewOpenAIClient wraps the provided chat client. The narrow interface keeps
// tests free of network calls.
func NewOpenAIClient(client chatCompleter, fastModel, powerfulModel string) *OpenAIClient {
	if client == nil {
		panic("insight: openai chat client cannot be nil")
	}
	if fastModel == "" {
		fastModel = "gpt-4o-mini"
	}
	if powerfulModel == "" {
		powerfulModel = "gpt-4o"
	}
	return &OpenAIClient{
		client:        client,
		fastModel:     fastModel,
		powerfulModel: powerfulModel,
	}
}

// Complete sends a JSON-mode completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.fastModel
	if req.Tier == TierPowerful {
		model = c.powerfulModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if req.MaxTokens > 0 {
		request.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		request.Temperature = req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("insight: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("insight: openai returned no choices")
	}

	choice := resp.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
