// Package notify delivers user-facing notifications and bridge state changes
// to the log and, optionally, to NATS subscribers such as a host UI.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a message meant for the person operating the bridge.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Sticky notifications stay visible until dismissed.
	Sticky bool      `json:"sticky"`
	Time   time.Time `json:"time"`
}

// Notifier posts notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at the level matching its severity.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	l.logger.Log(ctx, level(n.Severity), n.Message, "notify", true, "sticky", n.Sticky)
}

func level(s Severity) slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify posts n to every notifier in order.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}

// New stamps a notification with the current time.
func New(severity Severity, message string, sticky bool) Notification {
	return Notification{Severity: severity, Message: message, Sticky: sticky, Time: time.Now()}
}
