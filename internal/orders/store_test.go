package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway is a scriptable domain.ExecutionGateway.
type fakeGateway struct {
	createFn func(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
	cancelFn func(ctx context.Context, orderID string) error
	activeFn func(ctx context.Context, wallet string) ([]domain.Order, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if g.createFn != nil {
		return g.createFn(ctx, req)
	}
	return domain.Order{}, errors.New("not scripted")
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID string) error {
	if g.cancelFn != nil {
		return g.cancelFn(ctx, orderID)
	}
	return nil
}

func (g *fakeGateway) GetActiveOrders(ctx context.Context, wallet string) ([]domain.Order, error) {
	if g.activeFn != nil {
		return g.activeFn(ctx, wallet)
	}
	return nil, nil
}

func (g *fakeGateway) GetBalances(ctx context.Context, wallet string) (domain.BalanceSnapshot, error) {
	return domain.BalanceSnapshot{WalletAddress: wallet}, nil
}

func validRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		Type:          domain.OrderTypeMarket,
		Side:          domain.OrderSideBuy,
		InputSymbol:   "USDC",
		OutputSymbol:  "SOL",
		Amount:        10,
		WalletAddress: "wallet-1",
	}
}

func activeOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		Type:          domain.OrderTypeLimit,
		Side:          domain.OrderSideBuy,
		Status:        domain.OrderStatusPending,
		Amount:        10,
		WalletAddress: "wallet-1",
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestCreateOrder_Success(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(_ context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
			return domain.Order{
				ID:            "engine-1",
				Type:          req.Type,
				Side:          req.Side,
				Status:        domain.OrderStatusPending,
				Amount:        req.Amount,
				WalletAddress: req.WalletAddress,
			}, nil
		},
	}
	s := NewStore(gw, testLogger())

	ord, err := s.CreateOrder(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if ord.ID != "engine-1" {
		t.Errorf("confirmed order id = %q, want engine-1", ord.ID)
	}

	active := s.ActiveOrders()
	if len(active) != 1 || active[0].ID != "engine-1" {
		t.Fatalf("ActiveOrders() = %+v, want single engine-1", active)
	}
	if s.Err() != "" {
		t.Errorf("Err() = %q, want empty after success", s.Err())
	}
}

func TestCreateOrder_ValidationRejected(t *testing.T) {
	called := false
	gw := &fakeGateway{
		createFn: func(context.Context, domain.CreateOrderRequest) (domain.Order, error) {
			called = true
			return domain.Order{}, nil
		},
	}
	s := NewStore(gw, testLogger())

	req := validRequest()
	req.Amount = 0
	_, err := s.CreateOrder(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("CreateOrder() error = %v, want ErrInvalidOrder", err)
	}
	if called {
		t.Error("gateway was called for an invalid request")
	}
	if s.Err() == "" {
		t.Error("Err() should record the validation failure")
	}
}

func TestCreateOrder_GatewayFailureRollsBackOptimistic(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(context.Context, domain.CreateOrderRequest) (domain.Order, error) {
			return domain.Order{}, &domain.GatewayError{StatusCode: 502, Message: "engine down"}
		},
	}
	s := NewStore(gw, testLogger())

	_, err := s.CreateOrder(context.Background(), validRequest())
	if err == nil {
		t.Fatal("CreateOrder() should fail when the gateway fails")
	}
	if got := len(s.ActiveOrders()); got != 0 {
		t.Errorf("optimistic order survived a failed create: %d active", got)
	}
	if s.Err() == "" {
		t.Error("Err() should surface the gateway failure")
	}
}

func TestCreateOrder_OptimisticVisibleWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		createFn: func(_ context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
			close(entered)
			<-release
			return domain.Order{ID: "engine-1", Status: domain.OrderStatusPending, Amount: req.Amount, WalletAddress: req.WalletAddress}, nil
		},
	}
	s := NewStore(gw, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.CreateOrder(context.Background(), validRequest())
	}()

	<-entered
	active := s.ActiveOrders()
	if len(active) != 1 {
		t.Fatalf("in-flight create not visible: %d active", len(active))
	}
	if active[0].Status != domain.OrderStatusPending {
		t.Errorf("optimistic order status = %s, want pending", active[0].Status)
	}

	close(release)
	<-done

	active = s.ActiveOrders()
	if len(active) != 1 || active[0].ID != "engine-1" {
		t.Fatalf("optimistic entry not replaced by confirmed order: %+v", active)
	}
}

func TestCommitConfirmed_SwapIsAtomic(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())

	// The release func is deferred in CreateOrder and runs only after commit;
	// commit itself must remove the optimistic entry so no snapshot taken
	// between the two sees the order twice.
	release := s.admitOptimistic("corr-1", validRequest())
	s.commitConfirmed("corr-1", activeOrder("engine-1"))

	active := s.ActiveOrders()
	if len(active) != 1 {
		t.Fatalf("ActiveOrders() = %+v, want the confirmed order only", active)
	}
	if active[0].ID != "engine-1" {
		t.Errorf("active id = %q, want engine-1", active[0].ID)
	}

	release()
	if got := len(s.ActiveOrders()); got != 1 {
		t.Errorf("late release changed the active set: %d orders", got)
	}
}

func TestCreateOrder_RateLimited(t *testing.T) {
	gw := &fakeGateway{}
	s := NewStore(gw, testLogger(), WithRateLimiter(denyLimiter{}))

	_, err := s.CreateOrder(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("CreateOrder() error = %v, want ErrRateLimited", err)
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func TestHandleOrderUpdate_UnknownOrderIgnored(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())

	_, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "ghost", Status: domain.OrderStatusFilled})
	if applied {
		t.Error("update for unknown order was applied")
	}
}

func TestHandleOrderUpdate_MonotoneFill(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	seven, three, fifty := 7.0, 3.0, 50.0

	ord, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", FilledAmount: &seven})
	if !applied || ord.FilledAmount != 7 {
		t.Fatalf("fill = %v applied = %v, want 7 applied", ord.FilledAmount, applied)
	}

	// Stale smaller fill must not regress.
	ord, _ = s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", FilledAmount: &three})
	if ord.FilledAmount != 7 {
		t.Errorf("fill regressed to %v, want 7", ord.FilledAmount)
	}

	// Fill beyond the order amount is clamped.
	ord, _ = s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", FilledAmount: &fifty})
	if ord.FilledAmount != 10 {
		t.Errorf("fill = %v, want clamped to 10", ord.FilledAmount)
	}
}

func TestHandleOrderUpdate_InvalidTransitionIgnored(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled}); !applied {
		t.Fatal("fill update not applied")
	}

	// o1 is terminal and archived; any further update targets an unknown
	// active order and is dropped.
	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusCancelled}); applied {
		t.Error("update after terminal status was applied")
	}
}

func TestHandleOrderUpdate_TerminalArchivesOnce(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled}); !applied {
		t.Fatal("fill update not applied")
	}
	// Redelivery of the same terminal fact.
	s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled})

	if got := len(s.ActiveOrders()); got != 0 {
		t.Errorf("terminal order still active: %d", got)
	}
	hist := s.OrderHistory(0)
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want exactly 1", len(hist))
	}
	if hist[0].TriggeredAt == nil {
		t.Error("filled order should carry a triggered timestamp")
	}
}

func TestHandleOrderUpdate_OCOSiblingCancelled(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())

	tp := activeOrder("tp")
	tp.LinkedOrderID = "sl"
	sl := activeOrder("sl")
	sl.LinkedOrderID = "tp"
	s.commitConfirmed("", tp)
	s.commitConfirmed("", sl)

	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "tp", Status: domain.OrderStatusFilled}); !applied {
		t.Fatal("fill update not applied")
	}

	if got := len(s.ActiveOrders()); got != 0 {
		t.Fatalf("OCO sibling still active after fill: %d", got)
	}
	hist := s.OrderHistory(0)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	for _, ord := range hist {
		if ord.ID == "sl" && ord.Status != domain.OrderStatusCancelled {
			t.Errorf("sibling status = %s, want cancelled", ord.Status)
		}
	}
}

func TestCancelOrder_Success(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	if err := s.CancelOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if got := len(s.ActiveOrders()); got != 0 {
		t.Errorf("cancelled order still active: %d", got)
	}
	hist := s.OrderHistory(1)
	if len(hist) != 1 || hist[0].Status != domain.OrderStatusCancelled {
		t.Fatalf("history = %+v, want single cancelled order", hist)
	}
}

func TestCancelOrder_GatewayFailureRestoresVisibility(t *testing.T) {
	gw := &fakeGateway{
		cancelFn: func(context.Context, string) error {
			return &domain.GatewayError{StatusCode: 500, Message: "boom"}
		},
	}
	s := NewStore(gw, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	if err := s.CancelOrder(context.Background(), "o1"); err == nil {
		t.Fatal("CancelOrder() should surface the gateway failure")
	}
	active := s.ActiveOrders()
	if len(active) != 1 || active[0].ID != "o1" {
		t.Fatalf("order not restored after failed cancel: %+v", active)
	}
}

func TestCancelOrder_HiddenWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		cancelFn: func(context.Context, string) error {
			close(entered)
			<-release
			return nil
		},
	}
	s := NewStore(gw, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.CancelOrder(context.Background(), "o1")
	}()

	<-entered
	if got := len(s.ActiveOrders()); got != 0 {
		t.Errorf("order visible while cancel in flight: %d active", got)
	}
	close(release)
	<-done
}

func TestCancelOrder_TerminalEventWinsRace(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		cancelFn: func(context.Context, string) error {
			close(entered)
			<-release
			return nil
		},
	}
	s := NewStore(gw, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.CancelOrder(context.Background(), "o1"); err != nil {
			t.Errorf("CancelOrder() error = %v", err)
		}
	}()

	<-entered
	// A fill lands while the cancel RPC is still in flight.
	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled}); !applied {
		t.Fatal("fill during in-flight cancel not applied")
	}
	close(release)
	<-done

	hist := s.OrderHistory(0)
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
	if hist[0].Status != domain.OrderStatusFilled {
		t.Errorf("status = %s, want filled to win over the cancel", hist[0].Status)
	}
}

func TestCancelOrder_UnknownIDStillCallsGateway(t *testing.T) {
	called := false
	gw := &fakeGateway{
		cancelFn: func(_ context.Context, id string) error {
			called = true
			return nil
		},
	}
	s := NewStore(gw, testLogger())

	if err := s.CancelOrder(context.Background(), "ghost"); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if !called {
		t.Error("gateway cancel not attempted for untracked order")
	}
}

func TestCancelOrder_AlreadyTerminal(t *testing.T) {
	called := false
	gw := &fakeGateway{
		cancelFn: func(context.Context, string) error {
			called = true
			return nil
		},
	}
	s := NewStore(gw, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	if _, applied := s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled}); !applied {
		t.Fatal("fill update not applied")
	}

	err := s.CancelOrder(context.Background(), "o1")
	if !errors.Is(err, domain.ErrOrderTerminal) {
		t.Fatalf("CancelOrder() error = %v, want ErrOrderTerminal", err)
	}
	if called {
		t.Error("gateway cancel attempted for an archived order")
	}
}

func TestRefreshActiveOrders_SkipsArchived(t *testing.T) {
	snapshot := []domain.Order{activeOrder("o1"), activeOrder("o2")}
	gw := &fakeGateway{
		activeFn: func(context.Context, string) ([]domain.Order, error) {
			return snapshot, nil
		},
	}
	s := NewStore(gw, testLogger())
	s.commitConfirmed("", activeOrder("o1"))
	s.HandleOrderUpdate(domain.OrderUpdate{OrderID: "o1", Status: domain.OrderStatusFilled})

	if err := s.RefreshActiveOrders(context.Background(), "wallet-1"); err != nil {
		t.Fatalf("RefreshActiveOrders() error = %v", err)
	}

	active := s.ActiveOrders()
	if len(active) != 1 || active[0].ID != "o2" {
		t.Fatalf("stale snapshot resurrected archived order: %+v", active)
	}
}

func TestOrderHistory_MostRecentFirst(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	for _, id := range []string{"a", "b", "c"} {
		s.commitConfirmed("", activeOrder(id))
		s.HandleOrderUpdate(domain.OrderUpdate{OrderID: id, Status: domain.OrderStatusCancelled})
	}

	hist := s.OrderHistory(2)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].ID != "c" || hist[1].ID != "b" {
		t.Errorf("history order = [%s %s], want [c b]", hist[0].ID, hist[1].ID)
	}
}

func TestUpdates_EmittedWithoutBlocking(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))

	select {
	case ord := <-s.Updates():
		if ord.ID != "o1" {
			t.Errorf("update id = %q, want o1", ord.ID)
		}
	default:
		t.Fatal("no update emitted for committed order")
	}

	// Flooding past the buffer must not block the store.
	for i := 0; i < updatesBuffer*2; i++ {
		s.commitConfirmed("", activeOrder("flood"))
	}
}

func TestSetDegraded(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())

	if degraded, _ := s.Degraded(); degraded {
		t.Fatal("store degraded before any signal")
	}
	s.SetDegraded("monitoring stopped")
	degraded, msg := s.Degraded()
	if !degraded || msg != "monitoring stopped" {
		t.Errorf("Degraded() = %v %q", degraded, msg)
	}

	active := s.ActiveOrders()
	_ = active // degraded mode must not touch individual orders
}

func TestReset(t *testing.T) {
	s := NewStore(&fakeGateway{}, testLogger())
	s.commitConfirmed("", activeOrder("o1"))
	s.SetDegraded("x")

	s.Reset()

	if len(s.ActiveOrders()) != 0 || len(s.OrderHistory(0)) != 0 {
		t.Error("Reset() left orders behind")
	}
	if degraded, _ := s.Degraded(); degraded {
		t.Error("Reset() left degraded flag set")
	}
}
