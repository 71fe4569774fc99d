package reply

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nurtureai/nurture-go/internal/agent"
	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/intent"
)

type fakeInbox struct {
	calls atomic.Int32
}

func (f *fakeInbox) CheckReplies(ctx context.Context, since time.Time) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func TestWatcherProcessesPendingReplies(t *testing.T) {
	cls := &fakeClassifier{result: intent.Result{Intent: intent.IntentQuestion, Confidence: 0.9}}
	ag := &fakeAgent{answer: agent.Answer{Tool: agent.ToolDocumentRAG, Response: "The show apartment opens daily."}}
	f := newFixture(t, cls, ag)

	inbox := &fakeInbox{}
	w := NewWatcher(f.service, inbox, config.Config{
		WatchInterval: 20 * time.Millisecond,
		WatchLimit:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conv, err := f.store.GetConversation(context.Background(), f.cc.Conversation.ID)
		if err != nil {
			cancel()
			t.Fatalf("reload conversation: %v", err)
		}
		if conv.AutoProcessed {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("conversation not processed before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	if inbox.calls.Load() == 0 {
		t.Error("inbox never checked")
	}
}
