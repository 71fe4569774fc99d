package reply

import (
	"context"
	"log/slog"
	"time"

	"github.com/nurtureai/nurture-go/internal/config"
)

// InboxChecker captures new inbound replies before a processing pass.
type InboxChecker interface {
	CheckReplies(ctx context.Context, since time.Time) (int, error)
}

// Watcher periodically captures inbox replies and processes pending
// conversations. It is the daemon form of `nurture replies process`.
type Watcher struct {
	service  *Service
	inbox    InboxChecker // nil when IMAP is not configured
	interval time.Duration
	limit    int
	lookback time.Duration
}

// NewWatcher builds a Watcher from the configured interval and batch
// limit. inbox may be nil to disable reply capture.
func NewWatcher(service *Service, inbox InboxChecker, cfg config.Config) *Watcher {
	return &Watcher{
		service:  service,
		inbox:    inbox,
		interval: cfg.WatchInterval,
		limit:    cfg.WatchLimit,
		lookback: 24 * time.Hour,
	}
}

// Run blocks until ctx is cancelled, running one pass immediately and
// then one per interval.
func (w *Watcher) Run(ctx context.Context) {
	slog.Info("reply watcher started", "interval", w.interval, "limit", w.limit)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("reply watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	if w.inbox != nil {
		captured, err := w.inbox.CheckReplies(ctx, time.Now().Add(-w.lookback))
		if err != nil {
			slog.Error("inbox check failed", "error", err)
		} else if captured > 0 {
			slog.Info("captured new replies", "count", captured)
		}
	}

	result, err := w.service.ProcessPending(ctx, w.limit, false)
	if err != nil {
		slog.Error("reply pass failed", "error", err)
		return
	}
	if result.Total > 0 {
		slog.Info("reply pass complete",
			"total", result.Total, "processed", result.Processed,
			"skipped", result.Skipped, "errors", result.Errors)
	}
}
