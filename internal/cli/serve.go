package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nurtureai/nurture-go/internal/mail"
	"github.com/nurtureai/nurture-go/internal/reply"
	"github.com/nurtureai/nurture-go/internal/server"
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reply watcher",
	Long: `Serve starts the HTTP JSON API and, unless disabled, the background
watcher that captures inbox replies and processes pending conversations.

Example:
  nurture serve
  nurture serve --no-watch`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "serve the API without the background reply watcher")
}

func runServe(cmd *cobra.Command, args []string) error {
	ag, err := getAgent()
	if err != nil {
		return err
	}
	replies, err := getReplyService()
	if err != nil {
		return err
	}

	srv := server.New(cfg, st, ag, replies, collector)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcherDone := make(chan struct{})
	if serveNoWatch {
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
		stop()
		<-watcherDone
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-watcherDone
	return <-serveErr
}
