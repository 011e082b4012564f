package daemon_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"cardsorter/internal/assign"
	"cardsorter/internal/config"
	"cardsorter/internal/daemon"
	"cardsorter/internal/notifications"
	"cardsorter/internal/testsupport"
)

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) find(event notifications.Event) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, p := range r.events {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

func TestDaemonNotifiesSlotFullAndRunEnd(t *testing.T) {
	rec := &recordingNotifier{}
	d := startDaemon(t, testsupport.NewConfig(t), daemon.WithNotifier(rec))
	ctx := context.Background()

	for range 3 {
		if _, err := d.Commit(ctx, assign.Request{Name: "Counterspell", Confidence: 0.9}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	demo := true
	if _, err := d.StartRun(ctx, daemon.RunRequest{Total: 1000, Demo: &demo}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if _, err := d.EndRun(ctx); err != nil {
		t.Fatalf("EndRun: %v", err)
	}
	_ = d.Close()

	full := rec.find(notifications.EventSlotFull)
	if len(full) != 1 || full[0].payload["slot"] != "A3" || full[0].payload["count"] != "2" || full[0].payload["errorSlot"] != "K3" {
		t.Fatalf("expected one slot_full for A3, got %+v", full)
	}
	ended := rec.find(notifications.EventRunEnded)
	if len(ended) != 1 || ended[0].payload["total"] != "1000" || ended[0].payload["runId"] == "" {
		t.Fatalf("expected run_ended notification, got %+v", ended)
	}
	if fb := rec.find(notifications.EventGridFallback); len(fb) != 0 {
		t.Fatalf("unexpected grid fallback notification %+v", fb)
	}
}

func TestDaemonNotifiesGridFallback(t *testing.T) {
	rec := &recordingNotifier{}
	cfg := testsupport.NewConfig(t)
	cfg.Grid.Source = config.GridSourceTOML
	cfg.Grid.Path = filepath.Join(t.TempDir(), "missing.toml")

	d := startDaemon(t, cfg, daemon.WithNotifier(rec))
	_ = d.Close()

	fb := rec.find(notifications.EventGridFallback)
	if len(fb) != 1 || fb[0].payload["source"] != config.GridSourceTOML || fb[0].payload["error"] == "" {
		t.Fatalf("expected grid fallback notification, got %+v", fb)
	}
}
