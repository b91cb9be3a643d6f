package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected default provider gemini, got %s", cfg.LLMProvider)
	}
	if cfg.ExtractionBatchSize != 10 {
		t.Errorf("expected default batch size 10, got %d", cfg.ExtractionBatchSize)
	}
	if cfg.MaxConversations != 100 {
		t.Errorf("expected default conversation cap 100, got %d", cfg.MaxConversations)
	}
	if cfg.PromptCharBudget != 16000 {
		t.Errorf("expected default prompt budget 16000, got %d", cfg.PromptCharBudget)
	}
	if cfg.ExtractionBatchDelay != time.Second {
		t.Errorf("expected default batch delay 1s, got %s", cfg.ExtractionBatchDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXTRACTION_BATCH_SIZE", "4")
	t.Setenv("MAX_CONVERSATIONS", "25")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("EXTRACTION_TIMEOUT", "10s")
	t.Setenv("ALLOW_ALL_USERS", "true")

	cfg := Load()
	if cfg.ExtractionBatchSize != 4 {
		t.Errorf("expected batch size 4, got %d", cfg.ExtractionBatchSize)
	}
	if cfg.MaxConversations != 25 {
		t.Errorf("expected cap 25, got %d", cfg.MaxConversations)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("expected provider normalized to openai, got %s", cfg.LLMProvider)
	}
	if cfg.ExtractionTimeout != 10*time.Second {
		t.Errorf("expected extraction timeout 10s, got %s", cfg.ExtractionTimeout)
	}
	if !cfg.AllowAllUsers {
		t.Error("expected AllowAllUsers true")
	}
}
