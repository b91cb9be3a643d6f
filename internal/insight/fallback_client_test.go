package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/bjmnh/chatinsights/pkg/logging"
)

type fixedLLM struct {
	resp  LLMResponse
	err   error
	calls int
}

func (f *fixedLLM) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	f.calls++
	return f.resp, f.err
}

func TestFallbackClientPrimarySuccess(t *testing.T) {
	primary := &fixedLLM{resp: LLMResponse{Text: "primary"}}
	fallback := &fixedLLM{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackLLMClient(primary, fallback, logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "primary" {
		t.Fatalf("Text = %q, want primary", resp.Text)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not be touched when primary succeeds")
	}
}

func TestFallbackClientUsesFallback(t *testing.T) {
	primary := &fixedLLM{err: errors.New("rate limited")}
	fallback := &fixedLLM{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackLLMClient(primary, fallback, logging.Default())

	resp, err := client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "fallback" {
		t.Fatalf("Text = %q, want fallback", resp.Text)
	}
}

func TestFallbackClientBothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	client := NewFallbackLLMClient(&fixedLLM{err: primaryErr}, &fixedLLM{err: fallbackErr}, logging.Default())

	_, err := client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("err = %v, want fallback error", err)
	}
}

func TestFallbackClientNilFallback(t *testing.T) {
	primaryErr := errors.New("primary down")
	client := NewFallbackLLMClient(&fixedLLM{err: primaryErr}, nil, logging.Default())

	_, err := client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	if !errors.Is(err, primaryErr) {
		t.Fatalf("err = %v, want primary error", err)
	}
}
