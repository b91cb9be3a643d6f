package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InsightsQueueURL    string
	ArchiveBucket       string
	ArchiveDir          string

	// LLM provider selection and model tiers.
	LLMProvider          string
	LLMFallbackProvider  string
	GeminiAPIKey         string
	GeminiFastModel      string
	GeminiPowerfulModel  string
	OpenAIAPIKey         string
	OpenAIFastModel      string
	OpenAIPowerfulModel  string
	BedrockFastModel     string
	BedrockPowerfulModel string

	// Pipeline tuning. These are deliberate cost/latency bounds, not
	// correctness requirements.
	ExtractionBatchSize  int
	ExtractionBatchDelay time.Duration
	MaxConversations     int
	PromptCharBudget     int
	ExtractionTimeout    time.Duration
	SynthesisTimeout     time.Duration

	// AllowAllUsers bypasses the entitlement check in development.
	AllowAllUsers bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InsightsQueueURL:    getEnv("INSIGHTS_QUEUE_URL", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		ArchiveDir:          getEnv("ARCHIVE_DIR", "./archives"),

		LLMProvider:          strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		LLMFallbackProvider:  strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiFastModel:      getEnv("GEMINI_FAST_MODEL", "gemini-2.5-flash"),
		GeminiPowerfulModel:  getEnv("GEMINI_POWERFUL_MODEL", "gemini-2.5-pro"),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIFastModel:      getEnv("OPENAI_FAST_MODEL", "gpt-4o-mini"),
		OpenAIPowerfulModel:  getEnv("OPENAI_POWERFUL_MODEL", "gpt-4o"),
		BedrockFastModel:     getEnv("BEDROCK_FAST_MODEL", ""),
		BedrockPowerfulModel: getEnv("BEDROCK_POWERFUL_MODEL", ""),

		ExtractionBatchSize:  getEnvAsInt("EXTRACTION_BATCH_SIZE", 10),
		ExtractionBatchDelay: getEnvAsDuration("EXTRACTION_BATCH_DELAY", time.Second),
		MaxConversations:     getEnvAsInt("MAX_CONVERSATIONS", 100),
		PromptCharBudget:     getEnvAsInt("PROMPT_CHAR_BUDGET", 16000),
		ExtractionTimeout:    getEnvAsDuration("EXTRACTION_TIMEOUT", 45*time.Second),
		SynthesisTimeout:     getEnvAsDuration("SYNTHESIS_TIMEOUT", 90*time.Second),

		AllowAllUsers: getEnvAsBool("ALLOW_ALL_USERS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
