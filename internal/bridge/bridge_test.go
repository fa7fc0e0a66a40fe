package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
	"github.com/soltradehq/soltrade/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records reconciliation calls.
type fakeStore struct {
	mu          sync.Mutex
	updates     []domain.OrderUpdate
	applied     bool
	result      domain.Order
	degradedMsg string
	panicOnce   bool
}

func (f *fakeStore) HandleOrderUpdate(u domain.OrderUpdate) (domain.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnce {
		f.panicOnce = false
		panic("boom")
	}
	f.updates = append(f.updates, u)
	return f.result, f.applied
}

func (f *fakeStore) SetDegraded(msg string) {
	f.mu.Lock()
	f.degradedMsg = msg
	f.mu.Unlock()
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeRefresher counts Refresh calls per wallet.
type fakeRefresher struct {
	mu      sync.Mutex
	wallets []string
	done    chan struct{}
}

func (f *fakeRefresher) Refresh(_ context.Context, wallet string) error {
	f.mu.Lock()
	f.wallets = append(f.wallets, wallet)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return nil
}

// fakeAlerter records notifications.
type fakeAlerter struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (f *fakeAlerter) Notify(_ context.Context, note notify.Notification) error {
	f.mu.Lock()
	f.notes = append(f.notes, note)
	f.mu.Unlock()
	return nil
}

func (f *fakeAlerter) last() (notify.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notes) == 0 {
		return notify.Notification{}, false
	}
	return f.notes[len(f.notes)-1], true
}

func TestDispatch_OrderUpdateRouted(t *testing.T) {
	store := &fakeStore{applied: true}
	b := New(store, nil, nil, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.OrderUpdateEvent{
		Update: domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusPartiallyFilled},
	})

	if store.updateCount() != 1 {
		t.Fatalf("HandleOrderUpdate called %d times, want 1", store.updateCount())
	}
}

func TestDispatch_FilledTriggersBalanceRefresh(t *testing.T) {
	refresher := &fakeRefresher{done: make(chan struct{}, 1)}
	store := &fakeStore{
		applied: true,
		result:  domain.Order{ID: "o1", Status: domain.OrderStatusFilled, WalletAddress: "wallet-1"},
	}
	b := New(store, refresher, nil, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.OrderUpdateEvent{
		Update: domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled},
	})

	select {
	case <-refresher.done:
	case <-time.After(time.Second):
		t.Fatal("balance refresh not triggered for filled order")
	}
}

func TestDispatch_DuplicateDropped(t *testing.T) {
	store := &fakeStore{applied: true}
	b := New(store, nil, nil, "wallet-1", testLogger())

	ev := domain.OrderUpdateEvent{
		Update: domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled},
	}
	b.dispatch(context.Background(), ev)
	b.dispatch(context.Background(), ev)

	if store.updateCount() != 1 {
		t.Errorf("redelivered event reached the store: %d calls", store.updateCount())
	}
}

func TestDispatch_MonitoringStoppedNeverDeduplicated(t *testing.T) {
	store := &fakeStore{}
	b := New(store, nil, nil, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.MonitoringStoppedEvent{Message: "first"})
	b.dispatch(context.Background(), domain.MonitoringStoppedEvent{Message: "second"})

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.degradedMsg != "second" {
		t.Errorf("degraded msg = %q, want the second delivery to land", store.degradedMsg)
	}
}

func TestDispatch_MonitoringStoppedDefaultMessage(t *testing.T) {
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	b := New(store, nil, alerter, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.MonitoringStoppedEvent{})

	store.mu.Lock()
	msg := store.degradedMsg
	store.mu.Unlock()
	if msg == "" {
		t.Fatal("empty monitoring-stopped message not defaulted")
	}

	note, ok := alerter.last()
	if !ok {
		t.Fatal("no notification sent for monitoring stop")
	}
	if note.Severity != notify.SeverityCritical || !note.Persistent {
		t.Errorf("notification = %+v, want critical and persistent", note)
	}
}

func TestDispatch_PanicContained(t *testing.T) {
	store := &fakeStore{applied: true, panicOnce: true}
	b := New(store, nil, nil, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.OrderUpdateEvent{
		Update: domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusPartiallyFilled},
	})

	// The bridge must survive and keep processing.
	b.dispatch(context.Background(), domain.OrderUpdateEvent{
		Update: domain.OrderUpdate{OrderID: "o2", Status: domain.OrderStatusPartiallyFilled},
	})
	if store.updateCount() != 1 {
		t.Errorf("calls after panic = %d, want 1", store.updateCount())
	}
}

func TestDispatch_TransactionForOtherWalletIgnored(t *testing.T) {
	refresher := &fakeRefresher{}
	b := New(&fakeStore{}, refresher, nil, "wallet-1", testLogger())

	b.dispatch(context.Background(), domain.TransactionEvent{
		Signature: "sig-1",
		From:      "someone",
		To:        "else",
	})

	refresher.mu.Lock()
	defer refresher.mu.Unlock()
	if len(refresher.wallets) != 0 {
		t.Error("unrelated transaction triggered a balance refresh")
	}
}

func TestDispatch_CopyTradeOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		wantSeverity notify.Severity
	}{
		{"success", "success", notify.SeveritySuccess},
		{"failure", "failed", notify.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerter := &fakeAlerter{}
			b := New(&fakeStore{}, nil, alerter, "wallet-1", testLogger())

			b.dispatch(context.Background(), domain.CopyTradeEvent{
				Name:        "whale",
				Status:      tt.status,
				TxSignature: "sig-" + tt.name,
			})

			note, ok := alerter.last()
			if !ok {
				t.Fatal("no notification sent")
			}
			if note.Severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", note.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestRun_StopsOnClose(t *testing.T) {
	b := New(&fakeStore{}, nil, nil, "wallet-1", testLogger())
	events := make(chan domain.LifecycleEvent)

	done := make(chan error, 1)
	go func() {
		done <- b.Run(context.Background(), events)
	}()

	b.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after Close = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Close")
	}

	// Close is idempotent.
	b.Close()
}

func TestRun_StopsOnChannelClose(t *testing.T) {
	b := New(&fakeStore{}, nil, nil, "wallet-1", testLogger())
	events := make(chan domain.LifecycleEvent)
	close(events)

	if err := b.Run(context.Background(), events); err != nil {
		t.Errorf("Run() on closed channel = %v, want nil", err)
	}
}
