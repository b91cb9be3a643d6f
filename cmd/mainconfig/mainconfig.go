// Package mainconfig centralizes wiring shared by the api and worker
// binaries: AWS SDK setup and LLM provider selection.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/bjmnh/chatinsights/internal/config"
	"github.com/bjmnh/chatinsights/internal/insight"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

// LoadAWSConfig initializes the AWS SDK so both binaries share the same
// LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, s3.ServiceID, bedrockruntime.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// BuildLLMClient selects the configured provider and, when a fallback
// provider is set, wraps the pair so provider outages degrade instead of
// failing jobs.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (insight.LLMClient, error) {
	primary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary, nil
	}

	fallback, err := buildProvider(ctx, cfg.LLMFallbackProvider, cfg, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("mainconfig: build fallback provider %q: %w", cfg.LLMFallbackProvider, err)
	}
	return insight.NewFallbackLLMClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg aws.Config) (insight.LLMClient, error) {
	switch provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("mainconfig: GEMINI_API_KEY is required for the gemini provider")
		}
		return insight.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiFastModel, cfg.GeminiPowerfulModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("mainconfig: OPENAI_API_KEY is required for the openai provider")
		}
		return insight.NewOpenAIClient(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIFastModel, cfg.OpenAIPowerfulModel), nil
	case "bedrock":
		if cfg.BedrockFastModel == "" || cfg.BedrockPowerfulModel == "" {
			return nil, fmt.Errorf("mainconfig: BEDROCK_FAST_MODEL and BEDROCK_POWERFUL_MODEL are required for the bedrock provider")
		}
		return insight.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockFastModel, cfg.BedrockPowerfulModel), nil
	default:
		return nil, fmt.Errorf("mainconfig: unknown LLM provider %q", provider)
	}
}
