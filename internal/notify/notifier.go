// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord, etc.) and can
// be filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Severity classifies a notification for rendering purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Notification is a single user-facing alert. Persistent notifications
// should stay visible until explicitly dismissed (e.g. the degraded-mode
// warning when server-side order monitoring stops).
type Notification struct {
	Event      string
	Title      string
	Message    string
	Severity   Severity
	Persistent bool
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a single notification.
	Send(ctx context.Context, note Notification) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; Notify only forwards notifications whose event
// type is in the allowed set. Critical notifications bypass the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded. If events
// is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends the notification to all senders, applying the event-type
// filter unless the notification is critical.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if note.Severity == "" {
		note.Severity = SeverityInfo
	}

	if note.Severity != SeverityCritical && len(n.events) > 0 && !n.events[note.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", note.Event),
		)
		return nil
	}

	return n.dispatch(ctx, note)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, note Notification) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, note); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", note.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// badge returns a textual marker for the severity, shared by senders that
// render plain text.
func badge(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "✅"
	case SeverityError:
		return "❌"
	case SeverityCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}
