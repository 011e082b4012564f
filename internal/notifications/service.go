package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardsorter/internal/config"
)

const userAgent = "cardsorter/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunEnded     Event = "run_ended"
	EventSlotFull     Event = "slot_full"
	EventGridFallback Event = "grid_fallback"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]string

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders an event. Events that would fire too often to be useful as
// pushes report ok=false.
func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventRunCompleted:
		return message{
			title: "Sorter - Run Complete",
			body:  fmt.Sprintf("✅ Run %s complete: %s items, %s to the error slot", shortID(get("runId")), get("completed"), get("errors")),
			tags:  []string{"sorter", "run", "completed"},
		}, true
	case EventRunEnded:
		return message{
			title: "Sorter - Run Ended",
			body:  fmt.Sprintf("⏹️ Run %s ended at %s of %s items", shortID(get("runId")), get("completed"), dash(get("total"))),
			tags:  []string{"sorter", "run", "ended"},
		}, true
	case EventSlotFull:
		return message{
			title:    "Sorter - Slot Full",
			body:     fmt.Sprintf("📦 Slot %s is full (%s cards); further items overflow to %s", get("slot"), get("count"), get("errorSlot")),
			tags:     []string{"sorter", "slot", "full"},
			priority: "high",
		}, true
	case EventGridFallback:
		return message{
			title: "Sorter - Default Grid",
			body:  fmt.Sprintf("⚠️ Grid source %s failed; using the built-in layout: %s", get("source"), get("error")),
			tags:  []string{"sorter", "grid", "warning"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := get("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := get("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Sorter - Error",
			body:     b.String(),
			tags:     []string{"sorter", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Sorter - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"sorter", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return dash(id)
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
