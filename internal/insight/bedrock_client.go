package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements LLMClient using the Bedrock Converse API.
type BedrockClient struct {
	api           bedrockConverseAPI
	fastModel     string
	powerfulModel string
}

// NewBedrockClient creates a Bedrock-backed LLM client.
func NewBedrockClient(api bedrockConverseAPI, fastModel, powerfulModel string) *BedrockClient {
	if api == nil {
		panic("insight: bedrock converse client cannot be nil")
	}
	return &BedrockClient{
		api:           api,
		fastModel:     fastModel,
		powerfulModel: powerfulModel,
	}
}

// Complete sends a completion request via Bedrock Converse.
func (c *BedrockClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := c.fastModel
	if req.Tier == TierPowerful {
		modelID = c.powerfulModel
	}
	if strings.TrimSpace(modelID) == "" {
		return LLMResponse{}, errors.New("insight: bedrock model id is required")
	}

	var systemBlocks []brtypes.SystemContentBlock
	if system := strings.TrimSpace(req.System); system != "" {
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: system})
	}

	messages := []brtypes.Message{{
		Role: brtypes.ConversationRoleUser,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: req.Prompt},
		},
	}}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("insight: bedrock completion failed: %w", err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return LLMResponse{}, err
	}

	resp := LLMResponse{Text: strings.TrimSpace(text)}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("insight: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("insight: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return "", errors.New("insight: bedrock response message was empty")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("insight: bedrock response contained no text content blocks")
	}
	return text, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
