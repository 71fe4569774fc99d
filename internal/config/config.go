// Package config provides environment-based application configuration.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifiers for LLM and embedding backends.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// SQLite database
	DBPath string

	// LLM providers, in fallback order. The first entry is the primary.
	LLMProviders []string
	OpenAIAPIKey string
	OpenAIModel  string
	OllamaHost   string
	OllamaModel  string

	// Embeddings (document retrieval)
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// SMTP (outbound mail)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	SalesEmail   string

	// IMAP (reply capture)
	IMAPHost    string
	IMAPPort    int
	IMAPUser    string
	IMAPPass    string
	IMAPMailbox string

	// HTTP server
	ListenAddr string

	// Reply watcher
	WatchInterval time.Duration
	WatchLimit    int

	// Message templates (optional YAML override file)
	TemplatesPath string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables, consulting an
// optional .env file first.
func Load() Config {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	return Config{
		DBPath: getEnv("NURTURE_DB_PATH", "./data/nurture.db"),

		LLMProviders: splitList(getEnv("NURTURE_LLM_PROVIDERS", "openai,ollama")),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "llama3.1:8b-instruct"),

		EmbedProvider:  getEnv("NURTURE_EMBED_PROVIDER", ProviderOllama),
		EmbedModel:     getEnv("NURTURE_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("NURTURE_EMBED_DIMENSION", 384),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@nurture.local"),
		SalesEmail:   getEnv("SALES_TEAM_EMAIL", ""),

		IMAPHost:    getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:    getEnvInt("IMAP_PORT", 993),
		IMAPUser:    getEnv("IMAP_USER", ""),
		IMAPPass:    getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox: getEnv("IMAP_MAILBOX", "INBOX"),

		ListenAddr: getEnv("NURTURE_LISTEN_ADDR", ":8080"),

		WatchInterval: getEnvDuration("NURTURE_WATCH_INTERVAL", 60*time.Second),
		WatchLimit:    getEnvInt("NURTURE_WATCH_LIMIT", 50),

		TemplatesPath: getEnv("NURTURE_TEMPLATES_PATH", ""),

		LogFile:  getEnv("NURTURE_LOG_FILE", "/tmp/nurture.log"),
		LogLevel: parseLogLevel(getEnv("NURTURE_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
