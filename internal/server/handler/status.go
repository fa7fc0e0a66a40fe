package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
)

// StatusSource exposes the order store's observable state flags.
type StatusSource interface {
	Err() string
	IsLoading() bool
	Degraded() (bool, string)
	ActiveOrders() []domain.Order
}

// BalanceSource fetches the latest balance snapshot for a wallet, preferring
// the cache.
type BalanceSource interface {
	Cached(ctx context.Context, walletAddress string) (domain.BalanceSnapshot, error)
}

// StatusHandler serves client status and balance endpoints.
type StatusHandler struct {
	status    StatusSource
	balances  BalanceSource
	wallet    string
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(status StatusSource, balances BalanceSource, wallet string, startedAt time.Time, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		status:    status,
		balances:  balances,
		wallet:    wallet,
		startedAt: startedAt,
		logger:    logger,
	}
}

// GetStatus returns the client's current state flags.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	degraded, degradedMsg := h.status.Degraded()

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":         h.wallet,
		"active_orders":  len(h.status.ActiveOrders()),
		"loading":        h.status.IsLoading(),
		"degraded":       degraded,
		"degraded_msg":   degradedMsg,
		"last_error":     h.status.Err(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// GetBalances returns the wallet's token balances.
// GET /api/balances/{wallet}
func (h *StatusHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		wallet = h.wallet
	}

	snap, err := h.balances.Cached(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get balances failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch balances")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
