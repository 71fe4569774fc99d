// Package main provides the standalone HTTP server for nurture.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nurtureai/nurture-go/internal/agent"
	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/intent"
	"github.com/nurtureai/nurture-go/internal/llm"
	"github.com/nurtureai/nurture-go/internal/mail"
	"github.com/nurtureai/nurture-go/internal/metrics"
	"github.com/nurtureai/nurture-go/internal/rag"
	"github.com/nurtureai/nurture-go/internal/reply"
	"github.com/nurtureai/nurture-go/internal/server"
	"github.com/nurtureai/nurture-go/internal/store"
)

func main() {
	noWatch := flag.Bool("no-watch", false, "serve the API without the background reply watcher")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer closeLog()

	slog.Info("starting nurture-server", "addr", cfg.ListenAddr)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	collector := metrics.NewCollector()

	chain, err := llm.NewChain(cfg, llm.WithCollector(collector))
	if err != nil {
		slog.Error("failed to init llm chain", "error", err)
		os.Exit(1)
	}
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		slog.Error("failed to init embedder", "error", err)
		os.Exit(1)
	}
	mailer, err := mail.NewSMTPMailer(cfg)
	if err != nil {
		slog.Error("failed to init mailer", "error", err)
		os.Exit(1)
	}

	sqlTool := agent.NewSQLTool(st.DB(), chain)
	ragTool := agent.NewRAGTool(rag.NewChunkStore(st.DB()), embedder)
	ag := agent.New(chain, sqlTool, ragTool)

	replies, err := reply.NewService(st, intent.NewClassifier(chain), ag, mailer, cfg, reply.WithCollector(collector))
	if err != nil {
		slog.Error("failed to init reply service", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, st, ag, replies, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcherDone := make(chan struct{})
	if *noWatch {
		close(watcherDone)
	} else {
		var inbox reply.InboxChecker
		if cfg.IMAPUser != "" {
			inbox = mail.NewInboxReader(cfg, st)
		} else {
			slog.Info("IMAP not configured, watcher will only process captured replies")
		}
		go func() {
			defer close(watcherDone)
			reply.NewWatcher(replies, inbox, cfg).Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
		stop()
		<-watcherDone
		return
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	<-watcherDone
	if err := <-serveErr; err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
