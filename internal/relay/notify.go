package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/care/homehub/internal/mpris"
)

// ForwarderConfig configures notification popups
type ForwarderConfig struct {
	Title   string
	Urgency mpris.Urgency
	Timeout time.Duration
}

// NotificationForwarder shows every message of the notification topic
// as a desktop popup
type NotificationForwarder struct {
	cfg      ForwarderConfig
	notifier Notifier

	shown  atomic.Uint64
	failed atomic.Uint64
}

// NewNotificationForwarder creates a forwarder
func NewNotificationForwarder(cfg ForwarderConfig, notifier Notifier) *NotificationForwarder {
	return &NotificationForwarder{cfg: cfg, notifier: notifier}
}

// HandleMessage shows payload as the notification body. Failures are logged.
func (f *NotificationForwarder) HandleMessage(topic string, payload []byte) {
	body := string(payload)

	id, err := f.notifier.Notify(f.cfg.Title, body, f.cfg.Urgency, f.cfg.Timeout)
	if err != nil {
		f.failed.Add(1)
		slog.Error("failed to show notification", "topic", topic, "error", err)
		return
	}

	f.shown.Add(1)
	slog.Info("notification shown", "topic", topic, "id", id, "size", len(payload))
}

// Stats returns shown and failed counts
func (f *NotificationForwarder) Stats() (shown, failed uint64) {
	return f.shown.Load(), f.failed.Load()
}
