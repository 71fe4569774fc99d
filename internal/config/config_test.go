package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DBPath == "" {
		t.Error("DBPath should have a default")
	}
	if len(cfg.LLMProviders) == 0 {
		t.Error("LLMProviders should have a default order")
	}
	if cfg.LLMProviders[0] != ProviderOpenAI {
		t.Errorf("primary provider = %q, want %q", cfg.LLMProviders[0], ProviderOpenAI)
	}
	if cfg.WatchInterval <= 0 {
		t.Error("WatchInterval should default to a positive duration")
	}
	if cfg.WatchLimit <= 0 {
		t.Error("WatchLimit should default to a positive count")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NURTURE_LLM_PROVIDERS", "ollama")
	t.Setenv("NURTURE_WATCH_INTERVAL", "5s")
	t.Setenv("NURTURE_WATCH_LIMIT", "10")
	t.Setenv("NURTURE_LOG_LEVEL", "debug")

	cfg := Load()

	if len(cfg.LLMProviders) != 1 || cfg.LLMProviders[0] != ProviderOllama {
		t.Errorf("LLMProviders = %v, want [ollama]", cfg.LLMProviders)
	}
	if cfg.WatchInterval != 5*time.Second {
		t.Errorf("WatchInterval = %v, want 5s", cfg.WatchInterval)
	}
	if cfg.WatchLimit != 10 {
		t.Errorf("WatchLimit = %d, want 10", cfg.WatchLimit)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"openai,ollama", []string{"openai", "ollama"}},
		{" openai , ollama ", []string{"openai", "ollama"}},
		{"openai", []string{"openai"}},
		{"", nil},
		{",,", nil},
	}

	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
