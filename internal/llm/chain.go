// Package llm provides LLM and embedding services using langchaingo.
//
// All generation goes through a Chain: an ordered list of providers tried
// in sequence until one answers. The order comes from configuration at
// construction time; there is no process-wide provider state.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrProviderUnavailable indicates every configured provider failed for a
// single generation call. Check with errors.Is().
var ErrProviderUnavailable = errors.New("all LLM providers unavailable")

// provider pairs a configured langchaingo model with its name for logging.
type provider struct {
	name  string
	model llms.Model
}

// Chain tries each configured provider in order and falls back to the next
// on failure. One Chain value is shared by a single component; components
// with different sampling needs construct their own.
type Chain struct {
	providers   []provider
	temperature float64
	metrics     *metrics.Collector
}

// Option configures a Chain.
type Option func(*Chain)

// WithTemperature sets the sampling temperature for all calls on the chain.
func WithTemperature(t float64) Option {
	return func(c *Chain) { c.temperature = t }
}

// WithCollector records per-call timing and token usage on the given
// collector.
func WithCollector(m *metrics.Collector) Option {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds the provider list from cfg.LLMProviders, preserving
// order. Providers that cannot be constructed (e.g. missing API key) are
// skipped with a warning; at least one must remain.
func NewChain(cfg config.Config, opts ...Option) (*Chain, error) {
	c := &Chain{temperature: 0.7}
	for _, opt := range opts {
		opt(c)
	}

	for _, name := range cfg.LLMProviders {
		switch name {
		case config.ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				slog.Warn("skipping openai provider: no API key configured")
				continue
			}
			model, err := openai.New(
				openai.WithToken(cfg.OpenAIAPIKey),
				openai.WithModel(cfg.OpenAIModel),
			)
			if err != nil {
				slog.Warn("skipping openai provider", "error", err)
				continue
			}
			c.providers = append(c.providers, provider{name: name, model: model})

		case config.ProviderOllama:
			model, err := ollama.New(
				ollama.WithModel(cfg.OllamaModel),
				ollama.WithServerURL(cfg.OllamaHost),
			)
			if err != nil {
				slog.Warn("skipping ollama provider", "error", err)
				continue
			}
			c.providers = append(c.providers, provider{name: name, model: model})

		default:
			return nil, fmt.Errorf("unsupported LLM provider: %s", name)
		}
	}

	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured: set OPENAI_API_KEY or ensure Ollama is reachable")
	}

	return c, nil
}

// Generate produces text for a single prompt, falling back across
// providers. Returns an error wrapping ErrProviderUnavailable only when
// every provider failed.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
}

// GenerateWithSystem produces text for a system+user prompt pair with the
// same fallback behavior as Generate.
func (c *Chain) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	})
}

func (c *Chain) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	var failures []string

	for _, p := range c.providers {
		start := time.Now()
		response, err := p.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
		duration := time.Since(start)

		if err != nil {
			if isQuotaOrAuthError(err) {
				slog.Warn("provider unavailable, trying next", "provider", p.name, "error", err)
			} else {
				slog.Warn("provider call failed, trying next", "provider", p.name, "duration_ms", duration.Milliseconds(), "error", err)
			}
			failures = append(failures, fmt.Sprintf("%s: %v", p.name, err))
			continue
		}

		if len(response.Choices) == 0 {
			failures = append(failures, fmt.Sprintf("%s: no response choices", p.name))
			continue
		}

		if c.metrics != nil {
			in, out := tokenUsage(response.Choices[0].GenerationInfo)
			c.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)
		}

		slog.Debug("generation succeeded", "provider", p.name, "duration_ms", duration.Milliseconds())
		return response.Choices[0].Content, nil
	}

	return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, strings.Join(failures, "; "))
}

// quotaOrAuthPatterns are substrings that identify quota, billing, and
// authentication failures. These never recover on retry against the same
// provider, which is exactly why the chain moves on.
var quotaOrAuthPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
	"insufficient_quota",
}

// tokenUsage pulls prompt/completion token counts out of langchaingo's
// GenerationInfo map. Not every provider reports them; missing or oddly
// typed values count as zero.
func tokenUsage(info map[string]any) (in, out int64) {
	toInt := func(v any) int64 {
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
		return 0
	}
	if info == nil {
		return 0, 0
	}
	return toInt(info["PromptTokens"]), toInt(info["CompletionTokens"])
}

func isQuotaOrAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range quotaOrAuthPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
