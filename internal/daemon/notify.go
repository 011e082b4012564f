package daemon

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"cardsorter/internal/assign"
	"cardsorter/internal/grid"
	"cardsorter/internal/logging"
	"cardsorter/internal/notifications"
	"cardsorter/internal/run"
)

// notifier publishes daemon events asynchronously; commits and ticks never
// wait on ntfy.
type notifier struct {
	svc     notifications.Service
	logger  *slog.Logger
	source  string
	timeout time.Duration
	wg      sync.WaitGroup
}

func newNotifier(svc notifications.Service, source string, timeout time.Duration, logger *slog.Logger) *notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notifier{
		svc:     svc,
		logger:  logging.NewComponentLogger(logger, "notify"),
		source:  source,
		timeout: timeout,
	}
}

func (n *notifier) publish(event notifications.Event, payload notifications.Payload) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "operators miss this push; sorting continues"),
			)
		}
	}()
}

func (n *notifier) slotFull(slotID string, occ assign.Occupancy) {
	n.publish(notifications.EventSlotFull, notifications.Payload{
		"slot":      slotID,
		"count":     strconv.Itoa(occ.Counts[slotID]),
		"errorSlot": occ.ErrorSlot,
	})
}

func (n *notifier) runCompleted(snap run.Snapshot) {
	n.publish(notifications.EventRunCompleted, notifications.Payload{
		"runId":     snap.RunID,
		"completed": strconv.Itoa(snap.Completed),
		"errors":    strconv.Itoa(snap.Errors),
	})
}

func (n *notifier) runEnded(snap run.Snapshot) {
	payload := notifications.Payload{
		"runId":     snap.RunID,
		"completed": strconv.Itoa(snap.Completed),
	}
	if snap.Total > 0 {
		payload["total"] = strconv.Itoa(snap.Total)
	}
	n.publish(notifications.EventRunEnded, payload)
}

func (n *notifier) gridLoaded(state grid.State) {
	if !state.Fallback {
		return
	}
	n.publish(notifications.EventGridFallback, notifications.Payload{
		"source": n.source,
		"error":  state.FallbackReason,
	})
}

// wait blocks until in-flight publishes finish.
func (n *notifier) wait() {
	n.wg.Wait()
}
