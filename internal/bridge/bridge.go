// Package bridge fans backend lifecycle events out to the order store and
// side-effect collaborators (balance refresh, notifications). It owns the
// consuming end of the event channel for the lifetime of the session.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
	"github.com/soltradehq/soltrade/internal/notify"
)

const (
	// dedupTTL is the redelivery-suppression window for the at-least-once
	// event channel.
	dedupTTL = 5 * time.Minute

	// cleanupInterval bounds the dedup table between cleanups.
	cleanupInterval = time.Minute

	// eventStream is the redis stream mirroring accepted events.
	eventStream = "stream:lifecycle_events"
)

// OrderStore is the subset of the order store the bridge mutates.
type OrderStore interface {
	HandleOrderUpdate(u domain.OrderUpdate) (domain.Order, bool)
	SetDegraded(msg string)
}

// Alerter delivers user-facing notifications.
type Alerter interface {
	Notify(ctx context.Context, note notify.Notification) error
}

// Bridge routes each lifecycle event to exactly one handler path. Handler
// failures are caught and logged; they never crash the bridge or stop the
// subscription. After Close, late-arriving events are dropped.
type Bridge struct {
	store    OrderStore
	balance  domain.BalanceRefresher
	notifier Alerter
	bus      domain.SignalBus // optional event mirror
	wallet   string           // active wallet address
	dedup    *dedup
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures optional Bridge collaborators.
type Option func(*Bridge)

// WithSignalBus attaches a bus on which every accepted event is mirrored to
// a durable stream for audit and replay.
func WithSignalBus(bus domain.SignalBus) Option {
	return func(b *Bridge) { b.bus = bus }
}

// New creates a Bridge for the given active wallet.
func New(store OrderStore, balance domain.BalanceRefresher, notifier Alerter, wallet string, logger *slog.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		store:    store,
		balance:  balance,
		notifier: notifier,
		wallet:   wallet,
		dedup:    newDedup(dedupTTL),
		logger:   logger.With(slog.String("component", "event_bridge")),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run consumes events until ctx is cancelled, the bridge is closed, or the
// channel is closed by the producer. Each event is handled to completion
// before the next is read.
func (b *Bridge) Run(ctx context.Context, events <-chan domain.LifecycleEvent) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case <-ticker.C:
			b.dedup.cleanup()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.dispatch(ctx, ev)
		}
	}
}

// Close tears the bridge down. Idempotent and safe to call multiple times;
// events delivered afterwards are dropped.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// dispatch routes one event. The recover guard keeps a panicking handler
// from killing the consumer loop.
func (b *Bridge) dispatch(ctx context.Context, ev domain.LifecycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "event handler panicked",
				slog.String("kind", string(ev.Kind())),
				slog.Any("panic", r),
			)
		}
	}()

	if key := ev.DedupKey(); key != "" {
		if b.dedup.isDuplicate(string(ev.Kind()) + ":" + key) {
			b.logger.DebugContext(ctx, "duplicate event dropped",
				slog.String("kind", string(ev.Kind())),
				slog.String("key", key),
			)
			return
		}
	}

	b.mirror(ctx, ev)

	switch ev := ev.(type) {
	case domain.OrderUpdateEvent:
		b.handleOrderUpdate(ctx, ev)
	case domain.OrderTriggeredEvent:
		b.handleOrderTriggered(ctx, ev)
	case domain.TransactionEvent:
		b.handleTransaction(ctx, ev)
	case domain.CopyTradeEvent:
		b.handleCopyTrade(ctx, ev)
	case domain.MonitoringStoppedEvent:
		b.handleMonitoringStopped(ctx, ev)
	default:
		b.logger.WarnContext(ctx, "unknown event kind dropped",
			slog.String("kind", string(ev.Kind())),
		)
	}
}

func (b *Bridge) handleOrderUpdate(ctx context.Context, ev domain.OrderUpdateEvent) {
	ord, applied := b.store.HandleOrderUpdate(ev.Update)
	if !applied {
		// Expected under eventual consistency: the order may belong to a
		// prior session or a wallet this client never tracked.
		b.logger.DebugContext(ctx, "order update for untracked order ignored",
			slog.String("order_id", ev.Update.OrderID),
		)
		return
	}

	if ord.Status == domain.OrderStatusFilled {
		wallet := ord.WalletAddress
		if wallet == "" {
			wallet = ev.Update.WalletAddress
		}
		if wallet != "" {
			b.refreshBalance(wallet)
		}
	}
}

func (b *Bridge) handleOrderTriggered(ctx context.Context, ev domain.OrderTriggeredEvent) {
	b.notify(ctx, notify.Notification{
		Event:    "order_triggered",
		Title:    "Order triggered",
		Severity: notify.SeverityInfo,
		Message: fmt.Sprintf("%s %s %s %.6g @ %.6g",
			ev.OrderType, ev.Side, ev.Symbol, ev.Amount, ev.TriggerPrice),
	})
}

func (b *Bridge) handleTransaction(ctx context.Context, ev domain.TransactionEvent) {
	if ev.Involves(b.wallet) {
		b.refreshBalance(b.wallet)
	}
	if ev.Amount > 0 && ev.Symbol != "" {
		b.notify(ctx, notify.Notification{
			Event:    "transaction",
			Title:    "Wallet transaction",
			Severity: notify.SeverityInfo,
			Message:  fmt.Sprintf("%.6g %s (%s)", ev.Amount, ev.Symbol, shortSig(ev.Signature)),
		})
	}
}

func (b *Bridge) handleCopyTrade(ctx context.Context, ev domain.CopyTradeEvent) {
	severity := notify.SeverityError
	title := "Copy trade failed"
	if ev.Succeeded() {
		severity = notify.SeveritySuccess
		title = "Copy trade executed"
	}
	b.notify(ctx, notify.Notification{
		Event:    "copy_trade",
		Title:    title,
		Severity: severity,
		Message:  fmt.Sprintf("%s: %.6g %s from %s", ev.Name, ev.Amount, ev.Symbol, shortSig(ev.SourceWallet)),
	})

	if ev.Succeeded() && b.wallet != "" {
		b.refreshBalance(b.wallet)
	}
}

func (b *Bridge) handleMonitoringStopped(ctx context.Context, ev domain.MonitoringStoppedEvent) {
	msg := ev.Message
	if msg == "" {
		msg = "order monitoring stopped; orders may not execute automatically"
	}
	b.store.SetDegraded(msg)

	if b.bus != nil {
		payload, err := json.Marshal(map[string]string{"message": msg})
		if err == nil {
			_ = b.bus.Publish(ctx, "signal:monitoring", payload)
		}
	}

	b.notify(ctx, notify.Notification{
		Event:      "monitoring_stopped",
		Title:      "Order monitoring stopped",
		Message:    msg,
		Severity:   notify.SeverityCritical,
		Persistent: true,
	})
}

// refreshBalance triggers a fire-and-forget balance refresh. Failures are
// logged, never surfaced as blocking errors.
func (b *Bridge) refreshBalance(wallet string) {
	if b.balance == nil {
		return
	}
	go func() {
		if err := b.balance.Refresh(context.Background(), wallet); err != nil {
			b.logger.Warn("balance refresh failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (b *Bridge) notify(ctx context.Context, note notify.Notification) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, note); err != nil {
		b.logger.WarnContext(ctx, "notification failed",
			slog.String("event", note.Event),
			slog.String("error", err.Error()),
		)
	}
}

// mirror appends the event to the durable stream, best effort.
func (b *Bridge) mirror(ctx context.Context, ev domain.LifecycleEvent) {
	if b.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"kind":    string(ev.Kind()),
		"payload": ev,
	})
	if err != nil {
		return
	}
	if err := b.bus.StreamAppend(ctx, eventStream, payload); err != nil {
		b.logger.DebugContext(ctx, "event mirror failed",
			slog.String("kind", string(ev.Kind())),
			slog.String("error", err.Error()),
		)
	}
}

// shortSig abbreviates signatures and addresses for human-readable alerts.
func shortSig(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}
