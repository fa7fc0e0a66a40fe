// Package feed owns the live event subscription for a session. The feed
// connects to the engine WebSocket, subscribes for the active wallet, and
// pushes decoded lifecycle events into the channel the bridge consumes.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
	"github.com/soltradehq/soltrade/internal/platform/engine"
)

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 60 * time.Second
)

// EngineFeed maintains the WebSocket subscription to the engine's lifecycle
// event channel, reconnecting with backoff on disconnect. Events are sent to
// the configured channel; after Close, late events are dropped rather than
// sent.
type EngineFeed struct {
	wsURL  string
	apiKey string
	wallet string
	events chan<- domain.LifecycleEvent
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewEngineFeed creates a feed for the given wallet. Decoded events are
// delivered on the events channel, which the feed does not close.
func NewEngineFeed(wsURL, apiKey, wallet string, events chan<- domain.LifecycleEvent, logger *slog.Logger) *EngineFeed {
	return &EngineFeed{
		wsURL:  wsURL,
		apiKey: apiKey,
		wallet: wallet,
		events: events,
		logger: logger.With(slog.String("component", "engine_feed")),
		done:   make(chan struct{}),
	}
}

// Run connects and subscribes, then blocks until ctx is cancelled or Close
// is called. Disconnects trigger reconnection with exponential backoff; the
// subscription is re-established on every successful reconnect.
func (f *EngineFeed) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("engine ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}

		delay = nextDelay(delay)
	}
}

// nextDelay doubles the backoff delay, capped at maxReconnectDelay.
func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// Close stops the feed and tears down the subscription. Idempotent; events
// arriving after Close are dropped.
func (f *EngineFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// runConnection runs one connection lifetime: connect, subscribe, forward
// events until the connection drops or the feed stops.
func (f *EngineFeed) runConnection(ctx context.Context) error {
	client := engine.NewWSClient(f.wsURL, f.apiKey)
	defer client.Close()

	client.OnEvent(func(ev domain.LifecycleEvent) {
		select {
		case <-f.done:
			// Subscription torn down; drop instead of delivering late.
		case f.events <- ev:
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, f.wallet); err != nil {
		return err
	}
	f.logger.Info("engine ws subscribed", slog.String("wallet", f.wallet))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return nil
	case <-client.Done():
		if err := client.Err(); err != nil {
			return err
		}
		return domain.ErrWSDisconnect
	}
}
