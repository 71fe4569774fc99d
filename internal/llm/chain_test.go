package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nurtureai/nurture-go/internal/config"
)

func TestIsQuotaOrAuthError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		match bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("classify: %w", errors.New("credit balance too low")), true},
		{"404 not matched", errors.New("HTTP 404: not found"), false},
		{"timeout not matched", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isQuotaOrAuthError(tt.err)
			if got != tt.match {
				t.Errorf("isQuotaOrAuthError(%v) = %v, want %v", tt.err, got, tt.match)
			}
		})
	}
}

func TestNewChainNoProviders(t *testing.T) {
	cfg := config.Config{
		LLMProviders: []string{config.ProviderOpenAI},
		// No API key: the only candidate is skipped.
	}

	if _, err := NewChain(cfg); err == nil {
		t.Fatal("expected error when no provider can be constructed")
	}
}

func TestNewChainUnknownProvider(t *testing.T) {
	cfg := config.Config{
		LLMProviders: []string{"bedrock"},
	}

	if _, err := NewChain(cfg); err == nil {
		t.Fatal("expected error for unsupported provider name")
	}
}

func TestNewChainPreservesOrder(t *testing.T) {
	cfg := config.Config{
		LLMProviders: []string{config.ProviderOpenAI, config.ProviderOllama},
		OpenAIAPIKey: "test-key",
		OpenAIModel:  "gpt-4o-mini",
		OllamaHost:   "http://localhost:11434",
		OllamaModel:  "llama3.1:8b-instruct",
	}

	chain, err := NewChain(cfg, WithTemperature(0.3))
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	if len(chain.providers) != 2 {
		t.Fatalf("provider count = %d, want 2", len(chain.providers))
	}
	if chain.providers[0].name != config.ProviderOpenAI {
		t.Errorf("primary provider = %q, want openai", chain.providers[0].name)
	}
	if chain.providers[1].name != config.ProviderOllama {
		t.Errorf("secondary provider = %q, want ollama", chain.providers[1].name)
	}
	if chain.temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", chain.temperature)
	}
}
