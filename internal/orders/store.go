// Package orders implements the client-side source of truth for order state.
// The Store applies optimistic mutations for user intent, reconciles them
// with authoritative lifecycle events from the execution engine, and archives
// orders that reach a terminal status. It is safe for concurrent use.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soltradehq/soltrade/internal/domain"
)

const (
	// defaultCallTimeout bounds every gateway call made by the store.
	defaultCallTimeout = 10 * time.Second

	// updatesBuffer is the capacity of the order-update fan-out channel.
	// Sends never block; when observers fall behind, updates are dropped.
	updatesBuffer = 64

	// createLimit / createWindow throttle order submission per wallet.
	createLimit  = 10
	createWindow = time.Second
)

// Store owns the canonical client-side view of orders: optimistic in-flight
// entries, confirmed active orders, and terminal history. Only Store methods
// mutate these collections; everything else reads snapshots.
type Store struct {
	gateway domain.ExecutionGateway
	limiter domain.RateLimiter // optional
	audit   domain.AuditStore  // optional
	drafts  domain.DraftStore  // optional, session-boundary persistence
	logger  *slog.Logger

	callTimeout time.Duration

	mu            sync.Mutex
	active        map[string]domain.Order
	activeIDs     []string // insertion order of active
	history       []domain.Order
	archived      map[string]struct{}
	optimistic    map[string]domain.Order // correlation id -> tentative order
	pendingCancel map[string]struct{}     // ids with a cancel in flight
	draftsByID    map[string]domain.Draft
	deletedDrafts map[string]struct{}
	lastErr       string
	degraded      bool
	degradedMsg   string
	loading       bool

	updates chan domain.Order
}

// Option configures optional Store collaborators.
type Option func(*Store)

// WithRateLimiter attaches a distributed rate limiter checked before each
// order submission.
func WithRateLimiter(l domain.RateLimiter) Option {
	return func(s *Store) { s.limiter = l }
}

// WithAuditStore attaches an append-only audit log for order intents.
func WithAuditStore(a domain.AuditStore) Option {
	return func(s *Store) { s.audit = a }
}

// WithDraftStore attaches draft persistence used by LoadDrafts/SaveDrafts.
func WithDraftStore(d domain.DraftStore) Option {
	return func(s *Store) { s.drafts = d }
}

// WithCallTimeout overrides the per-call gateway timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// NewStore creates a Store backed by the given execution gateway.
func NewStore(gateway domain.ExecutionGateway, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		gateway:       gateway,
		logger:        logger.With(slog.String("component", "order_store")),
		callTimeout:   defaultCallTimeout,
		active:        make(map[string]domain.Order),
		archived:      make(map[string]struct{}),
		optimistic:    make(map[string]domain.Order),
		pendingCancel: make(map[string]struct{}),
		draftsByID:    make(map[string]domain.Draft),
		deletedDrafts: make(map[string]struct{}),
		updates:       make(chan domain.Order, updatesBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates the request, inserts an optimistic pending order so
// the caller's view reflects intent immediately, and submits it to the
// engine. On success the optimistic entry is replaced by the engine-confirmed
// order; on failure it is removed and the error is surfaced. The optimistic
// entry cannot survive past this call on any path.
func (s *Store) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		s.recordErr(err)
		return domain.Order{}, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "orders:create:"+req.WalletAddress, createLimit, createWindow)
		if err != nil {
			s.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			s.recordErr(domain.ErrRateLimited)
			return domain.Order{}, fmt.Errorf("orders: create: %w", domain.ErrRateLimited)
		}
	}

	corrID := uuid.NewString()
	release := s.admitOptimistic(corrID, req)
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	confirmed, err := s.gateway.CreateOrder(callCtx, req)
	if err != nil {
		s.recordErr(err)
		s.logger.WarnContext(ctx, "order submission failed",
			slog.String("correlation_id", corrID),
			slog.String("error", err.Error()),
		)
		return domain.Order{}, fmt.Errorf("orders: create: %w", err)
	}

	s.commitConfirmed(corrID, confirmed)
	s.auditLog(ctx, "order_created", map[string]any{
		"order_id": confirmed.ID,
		"side":     string(confirmed.Side),
		"type":     string(confirmed.Type),
		"amount":   confirmed.Amount,
		"symbol":   confirmed.Symbol(),
		"wallet":   confirmed.WalletAddress,
	})

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", confirmed.ID),
		slog.String("side", string(confirmed.Side)),
		slog.String("type", string(confirmed.Type)),
	)
	return confirmed, nil
}

// admitOptimistic inserts a tentative pending order keyed by the correlation
// id and returns a release func that removes it. Callers defer the release so
// the entry is cleared on every exit path, success or failure.
func (s *Store) admitOptimistic(corrID string, req domain.CreateOrderRequest) func() {
	now := time.Now().UTC()
	tentative := domain.Order{
		ID:            corrID,
		Type:          req.Type,
		Side:          req.Side,
		Status:        domain.OrderStatusPending,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		InputSymbol:   req.InputSymbol,
		OutputSymbol:  req.OutputSymbol,
		Amount:        req.Amount,
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		TrailingPct:   req.TrailingPct,
		LinkedOrderID: req.LinkedOrderID,
		SlippageBps:   req.SlippageBps,
		PriorityFee:   req.PriorityFee,
		WalletAddress: req.WalletAddress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.optimistic[corrID] = tentative
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.optimistic, corrID)
			s.mu.Unlock()
		})
	}
}

// commitConfirmed swaps the optimistic entry for the engine-confirmed order
// in one critical section, so no reader can observe both at once. Market
// orders may come back already terminal, in which case they go straight to
// history.
func (s *Store) commitConfirmed(corrID string, ord domain.Order) {
	s.mu.Lock()
	delete(s.optimistic, corrID)
	s.lastErr = ""
	if ord.Status.IsTerminal() {
		s.archiveLocked(ord)
	} else {
		s.insertActiveLocked(ord)
	}
	s.emitLocked(ord)
	s.mu.Unlock()
}

// CancelOrder marks the order as cancelling (hiding it from the active
// snapshot) and asks the engine to cancel it. Orders already in history fail
// fast with ErrOrderTerminal. On gateway failure the mark is cleared and the
// order reappears; if a terminal event arrived while the cancel was in
// flight, the terminal status wins and the cancel result is ignored.
func (s *Store) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	if _, gone := s.archived[orderID]; gone {
		s.mu.Unlock()
		return fmt.Errorf("orders: cancel %q: %w", orderID, domain.ErrOrderTerminal)
	}
	_, tracked := s.active[orderID]
	if tracked {
		s.pendingCancel[orderID] = struct{}{}
	}
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	err := s.gateway.CancelOrder(callCtx, orderID)

	s.mu.Lock()
	delete(s.pendingCancel, orderID)

	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("orders: cancel %q: %w", orderID, err)
	}

	ord, still := s.active[orderID]
	if !still {
		// Already archived by a terminal event, or never tracked.
		s.mu.Unlock()
		return nil
	}
	ord.Status = domain.OrderStatusCancelled
	ord.UpdatedAt = time.Now().UTC()
	s.archiveLocked(ord)
	s.lastErr = ""
	s.emitLocked(ord)
	s.mu.Unlock()

	s.auditLog(ctx, "order_cancelled", map[string]any{"order_id": orderID})
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", orderID))
	return nil
}

// RefreshActiveOrders replaces the active-order collection with the engine's
// authoritative snapshot for a wallet. Orders already archived locally are
// skipped so a stale snapshot cannot resurrect terminal orders.
func (s *Store) RefreshActiveOrders(ctx context.Context, walletAddress string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	snapshot, err := s.gateway.GetActiveOrders(callCtx, walletAddress)
	if err != nil {
		s.recordErr(err)
		return fmt.Errorf("orders: refresh active for %q: %w", walletAddress, err)
	}

	s.mu.Lock()
	s.active = make(map[string]domain.Order, len(snapshot))
	s.activeIDs = s.activeIDs[:0]
	for _, ord := range snapshot {
		if _, gone := s.archived[ord.ID]; gone {
			continue
		}
		if ord.Status.IsTerminal() {
			s.archiveLocked(ord)
			continue
		}
		s.insertActiveLocked(ord)
	}
	s.lastErr = ""
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "active orders refreshed",
		slog.String("wallet", walletAddress),
		slog.Int("count", len(snapshot)),
	)
	return nil
}

// HandleOrderUpdate is the single reconciliation entry point. It applies a
// partial authoritative update to the matching active order. Updates for
// unknown or already-archived ids are ignored; filled amount is clamped
// monotone non-decreasing; a terminal status moves the order to history in
// the same critical section. The second return value reports whether the
// update was applied.
func (s *Store) HandleOrderUpdate(u domain.OrderUpdate) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.active[u.OrderID]
	if !ok {
		return domain.Order{}, false
	}

	if u.FilledAmount != nil {
		f := *u.FilledAmount
		if f > ord.Amount {
			f = ord.Amount
		}
		if f > ord.FilledAmount {
			ord.FilledAmount = f
		}
	}
	if u.TxSignature != "" {
		ord.TxSignature = u.TxSignature
	}
	if u.ErrorMessage != "" {
		ord.ErrorMessage = u.ErrorMessage
	}
	if u.Status != "" && u.Status != ord.Status {
		if !ord.Status.CanTransition(u.Status) {
			return domain.Order{}, false
		}
		ord.Status = u.Status
	}
	now := time.Now().UTC()
	ord.UpdatedAt = now
	if ord.Status == domain.OrderStatusFilled && ord.TriggeredAt == nil {
		ord.TriggeredAt = &now
	}

	if ord.Status.IsTerminal() {
		s.archiveLocked(ord)
	} else {
		s.active[ord.ID] = ord
	}
	s.emitLocked(ord)
	return ord, true
}

// archiveLocked moves an order into immutable history exactly once and
// cancels the OCO sibling when the terminal status warrants it. Caller holds
// s.mu.
func (s *Store) archiveLocked(ord domain.Order) {
	if _, dup := s.archived[ord.ID]; dup {
		return
	}
	s.removeActiveLocked(ord.ID)
	s.archived[ord.ID] = struct{}{}
	s.history = append(s.history, ord)

	if ord.LinkedOrderID == "" {
		return
	}
	if ord.Status != domain.OrderStatusFilled && ord.Status != domain.OrderStatusCancelled {
		return
	}
	sibling, ok := s.active[ord.LinkedOrderID]
	if !ok {
		return
	}
	sibling.Status = domain.OrderStatusCancelled
	sibling.UpdatedAt = time.Now().UTC()
	s.archiveLocked(sibling)
	s.emitLocked(sibling)
}

func (s *Store) insertActiveLocked(ord domain.Order) {
	if _, exists := s.active[ord.ID]; !exists {
		s.activeIDs = append(s.activeIDs, ord.ID)
	}
	s.active[ord.ID] = ord
}

func (s *Store) removeActiveLocked(id string) {
	if _, exists := s.active[id]; !exists {
		return
	}
	delete(s.active, id)
	delete(s.pendingCancel, id)
	for i, existing := range s.activeIDs {
		if existing == id {
			s.activeIDs = append(s.activeIDs[:i], s.activeIDs[i+1:]...)
			break
		}
	}
}

// emitLocked publishes an order snapshot to passive observers without
// blocking. Caller holds s.mu.
func (s *Store) emitLocked(ord domain.Order) {
	select {
	case s.updates <- ord:
	default:
	}
}

// Updates returns the order-update fan-out channel. The store never closes
// it; sends are dropped when the buffer is full.
func (s *Store) Updates() <-chan domain.Order {
	return s.updates
}

// ActiveOrders returns a snapshot of active orders in insertion order,
// including optimistic in-flight entries and excluding orders with a cancel
// in flight.
func (s *Store) ActiveOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.activeIDs)+len(s.optimistic))
	for _, id := range s.activeIDs {
		if _, cancelling := s.pendingCancel[id]; cancelling {
			continue
		}
		out = append(out, s.active[id])
	}
	if len(s.optimistic) > 0 {
		tentative := make([]domain.Order, 0, len(s.optimistic))
		for _, ord := range s.optimistic {
			tentative = append(tentative, ord)
		}
		sort.Slice(tentative, func(i, j int) bool {
			return tentative[i].CreatedAt.Before(tentative[j].CreatedAt)
		})
		out = append(out, tentative...)
	}
	return out
}

// OrderHistory returns up to limit archived orders, most recent first.
// limit <= 0 returns the full history.
func (s *Store) OrderHistory(limit int) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Order, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Err returns the most recent user-visible error message, or "" when the
// last operation succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsLoading reports whether an authoritative refresh is in progress.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetDegraded flags the store as running without server-side order
// monitoring. No individual order status changes.
func (s *Store) SetDegraded(msg string) {
	s.mu.Lock()
	s.degraded = true
	s.degradedMsg = msg
	s.mu.Unlock()
}

// Degraded reports the degraded-mode flag and its message.
func (s *Store) Degraded() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded, s.degradedMsg
}

// Reset clears all state back to initial defaults. Used for session teardown
// and tests.
func (s *Store) Reset() {
	s.mu.Lock()
	s.active = make(map[string]domain.Order)
	s.activeIDs = nil
	s.history = nil
	s.archived = make(map[string]struct{})
	s.optimistic = make(map[string]domain.Order)
	s.pendingCancel = make(map[string]struct{})
	s.draftsByID = make(map[string]domain.Draft)
	s.deletedDrafts = make(map[string]struct{})
	s.lastErr = ""
	s.degraded = false
	s.degradedMsg = ""
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
