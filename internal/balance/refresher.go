// Package balance re-fetches authoritative wallet balances after
// state-changing events and fans the fresh snapshot out to interested
// surfaces.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
)

// signalChannel is the pub/sub channel UI surfaces listen on for balance
// changes.
const signalChannel = "signal:balances"

// Refresher implements domain.BalanceRefresher. Each refresh fetches the
// wallet's balances from the gateway, caches the snapshot, and publishes a
// change signal. A refresh failure leaves the previous snapshot in place.
type Refresher struct {
	gateway domain.ExecutionGateway
	cache   domain.BalanceCache
	bus     domain.SignalBus
	timeout time.Duration
	logger  *slog.Logger
}

// NewRefresher creates a Refresher. cache and bus may be nil; the gateway
// fetch still runs so callers observe fetch failures.
func NewRefresher(gateway domain.ExecutionGateway, cache domain.BalanceCache, bus domain.SignalBus, logger *slog.Logger) *Refresher {
	return &Refresher{
		gateway: gateway,
		cache:   cache,
		bus:     bus,
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "balance_refresher")),
	}
}

// Refresh fetches the wallet's balances and propagates the snapshot. The
// cache write and signal publish are best effort; only the gateway fetch can
// fail the refresh.
func (r *Refresher) Refresh(ctx context.Context, walletAddress string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.gateway.GetBalances(ctx, walletAddress)
	if err != nil {
		return fmt.Errorf("balance: refresh %s: %w", walletAddress, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.logger.Warn("balance cache write failed",
				slog.String("wallet", walletAddress),
				slog.String("error", err.Error()),
			)
		}
	}

	r.publish(ctx, snap)

	r.logger.Debug("balances refreshed",
		slog.String("wallet", walletAddress),
		slog.Int("tokens", len(snap.Balances)),
	)
	return nil
}

// Cached returns the most recent snapshot for a wallet, falling back to a
// gateway fetch on a cache miss.
func (r *Refresher) Cached(ctx context.Context, walletAddress string) (domain.BalanceSnapshot, error) {
	if r.cache != nil {
		snap, err := r.cache.Get(ctx, walletAddress)
		if err == nil {
			return snap, nil
		}
	}

	snap, err := r.gateway.GetBalances(ctx, walletAddress)
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("balance: fetch %s: %w", walletAddress, err)
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, snap)
	}
	return snap, nil
}

func (r *Refresher) publish(ctx context.Context, snap domain.BalanceSnapshot) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, signalChannel, payload); err != nil {
		r.logger.Debug("balance signal publish failed",
			slog.String("wallet", snap.WalletAddress),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time interface check.
var _ domain.BalanceRefresher = (*Refresher)(nil)
