package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/soltradehq/soltrade/internal/domain"
)

// OrderService defines the methods the order handler requires from the order
// store.
type OrderService interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	RefreshActiveOrders(ctx context.Context, walletAddress string) error
	ActiveOrders() []domain.Order
	OrderHistory(limit int) []domain.Order
}

// ArchiveSource reads terminal orders from durable storage, beyond the
// current session's in-memory history.
type ArchiveSource interface {
	ListByWallet(ctx context.Context, walletAddress string, limit int) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders  OrderService
	archive ArchiveSource // may be nil
	wallet  string
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler bound to the active wallet.
func NewOrderHandler(orders OrderService, archive ArchiveSource, wallet string, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		archive: archive,
		wallet:  wallet,
		logger:  logger,
	}
}

type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// ListOrders returns the currently active orders, confirmed and optimistic.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.orders.ActiveOrders()
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// ListHistory returns terminal orders from the session history, most recent
// first.
// GET /api/orders/history?limit=50
func (h *OrderHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	orders := h.orders.OrderHistory(parseLimit(r, 50))
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// ListArchived returns terminal orders from the durable archive, most recent
// first. Unlike /history this spans past sessions.
// GET /api/orders/archive?limit=100
func (h *OrderHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "order archive not configured")
		return
	}

	orders, err := h.archive.ListByWallet(r.Context(), h.wallet, parseLimit(r, 100))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archived orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archived orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// CreateOrder submits a new order from a JSON request body.
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.WalletAddress == "" {
		req.WalletAddress = h.wallet
	}

	ord, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			writeError(w, http.StatusBadGateway, gwErr.Message)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create order failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"order": ord})
}

// CancelOrder cancels an existing order by its ID.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if errors.Is(err, domain.ErrOrderTerminal) {
			writeError(w, http.StatusConflict, "order already in terminal state")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": id,
	})
}

// RefreshOrders re-fetches the authoritative active-order snapshot from the
// engine.
// POST /api/orders/refresh
func (h *OrderHandler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.RefreshActiveOrders(r.Context(), h.wallet); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: refresh orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to refresh orders")
		return
	}

	orders := h.orders.ActiveOrders()
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}
