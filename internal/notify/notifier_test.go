package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender captures delivered notifications.
type recordingSender struct {
	name  string
	notes []Notification
	err   error
}

func (s *recordingSender) Send(_ context.Context, note Notification) error {
	if s.err != nil {
		return s.err
	}
	s.notes = append(s.notes, note)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func TestNotify_EventFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"order_triggered"}, testLogger())

	if err := n.Notify(context.Background(), Notification{Event: "order_triggered", Title: "hit"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := n.Notify(context.Background(), Notification{Event: "transaction", Title: "miss"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(sender.notes) != 1 || sender.notes[0].Title != "hit" {
		t.Errorf("delivered = %+v, want only the allowed event", sender.notes)
	}
}

func TestNotify_CriticalBypassesFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"order_triggered"}, testLogger())

	err := n.Notify(context.Background(), Notification{
		Event:    "monitoring_stopped",
		Severity: SeverityCritical,
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sender.notes) != 1 {
		t.Error("critical notification was filtered out")
	}
}

func TestNotify_EmptyEventsAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	if err := n.Notify(context.Background(), Notification{Event: "anything"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sender.notes) != 1 {
		t.Error("notification dropped with no filter configured")
	}
}

func TestNotify_SenderFailureDoesNotBlockOthers(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("unreachable")}
	working := &recordingSender{name: "working"}
	n := NewNotifier([]Sender{broken, working}, nil, testLogger())

	err := n.Notify(context.Background(), Notification{Event: "transaction"})
	if err == nil {
		t.Fatal("Notify() should report the failed sender")
	}
	if len(working.notes) != 1 {
		t.Error("working sender skipped after another sender failed")
	}
}

func TestNotify_DefaultSeverity(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	if err := n.Notify(context.Background(), Notification{Event: "x"}); err != nil {
		t.Fatal(err)
	}
	if sender.notes[0].Severity != SeverityInfo {
		t.Errorf("severity = %s, want info default", sender.notes[0].Severity)
	}
}

func TestNotify_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if err := n.Notify(context.Background(), Notification{Event: "x"}); err != nil {
		t.Errorf("Notify() with no senders = %v, want nil", err)
	}
}
