// Package cli provides the command-line interface for nurture.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nurtureai/nurture-go/internal/agent"
	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/intent"
	"github.com/nurtureai/nurture-go/internal/llm"
	"github.com/nurtureai/nurture-go/internal/mail"
	"github.com/nurtureai/nurture-go/internal/metrics"
	"github.com/nurtureai/nurture-go/internal/rag"
	"github.com/nurtureai/nurture-go/internal/reply"
	"github.com/nurtureai/nurture-go/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and store
	cfg config.Config
	st  *store.Store

	// Shared metrics collector
	collector = metrics.NewCollector()

	// Lazy-initialized LLM components
	chain    *llm.Chain
	embedder *llm.Embedder

	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nurture",
	Short: "AI-assisted lead nurturing for real estate campaigns",
	Long: `Nurture keeps email conversations with real estate leads moving:
it captures customer replies, classifies their intent, answers questions
with an LLM agent over CRM data and project brochures, and hands hot
leads to the sales team.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeFn := config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		closeLog = closeFn

		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		var err error
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			if err := st.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// getChain lazily constructs the shared LLM fallback chain.
func getChain() (*llm.Chain, error) {
	if chain == nil {
		var err error
		chain, err = llm.NewChain(cfg, llm.WithCollector(collector))
		if err != nil {
			return nil, fmt.Errorf("init llm chain: %w", err)
		}
	}
	return chain, nil
}

// getEmbedder lazily constructs the embedding client.
func getEmbedder() (*llm.Embedder, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}
	return embedder, nil
}

// getAgent wires the routing agent over both retrieval tools.
func getAgent() (*agent.Agent, error) {
	c, err := getChain()
	if err != nil {
		return nil, err
	}
	e, err := getEmbedder()
	if err != nil {
		return nil, err
	}

	sqlTool := agent.NewSQLTool(st.DB(), c)
	ragTool := agent.NewRAGTool(rag.NewChunkStore(st.DB()), e)
	return agent.New(c, sqlTool, ragTool), nil
}

// getReplyService wires the automated reply pipeline.
func getReplyService() (*reply.Service, error) {
	ag, err := getAgent()
	if err != nil {
		return nil, err
	}
	c, err := getChain()
	if err != nil {
		return nil, err
	}
	mailer, err := mail.NewSMTPMailer(cfg)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	return reply.NewService(st, intent.NewClassifier(c), ag, mailer, cfg, reply.WithCollector(collector))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(repliesCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(importCmd)
}
