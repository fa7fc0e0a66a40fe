package domain

import (
	"errors"
	"testing"
)

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, false},
		{OrderStatusPartiallyFilled, false},
		{OrderStatusFilled, true},
		{OrderStatusCancelled, true},
		{OrderStatusExpired, true},
		{OrderStatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to partial", OrderStatusPending, OrderStatusPartiallyFilled, true},
		{"pending to filled", OrderStatusPending, OrderStatusFilled, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"pending to failed", OrderStatusPending, OrderStatusFailed, true},
		{"pending to pending", OrderStatusPending, OrderStatusPending, false},
		{"partial to partial", OrderStatusPartiallyFilled, OrderStatusPartiallyFilled, true},
		{"partial to filled", OrderStatusPartiallyFilled, OrderStatusFilled, true},
		{"partial to cancelled", OrderStatusPartiallyFilled, OrderStatusCancelled, true},
		{"partial to pending", OrderStatusPartiallyFilled, OrderStatusPending, false},
		{"filled to cancelled", OrderStatusFilled, OrderStatusCancelled, false},
		{"cancelled to filled", OrderStatusCancelled, OrderStatusFilled, false},
		{"expired to partial", OrderStatusExpired, OrderStatusPartiallyFilled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	price := 1.5
	pct := 5.0
	base := CreateOrderRequest{
		Type:          OrderTypeMarket,
		Side:          OrderSideBuy,
		Amount:        10,
		WalletAddress: "wallet-1",
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateOrderRequest)
		wantErr bool
	}{
		{"valid market", func(r *CreateOrderRequest) {}, false},
		{"zero amount", func(r *CreateOrderRequest) { r.Amount = 0 }, true},
		{"negative amount", func(r *CreateOrderRequest) { r.Amount = -1 }, true},
		{"missing wallet", func(r *CreateOrderRequest) { r.WalletAddress = "  " }, true},
		{"bad side", func(r *CreateOrderRequest) { r.Side = "hold" }, true},
		{"limit without price", func(r *CreateOrderRequest) { r.Type = OrderTypeLimit }, true},
		{"limit with price", func(r *CreateOrderRequest) {
			r.Type = OrderTypeLimit
			r.LimitPrice = &price
		}, false},
		{"stop without price", func(r *CreateOrderRequest) { r.Type = OrderTypeStop }, true},
		{"stop with price", func(r *CreateOrderRequest) {
			r.Type = OrderTypeStop
			r.StopPrice = &price
		}, false},
		{"stoplimit missing stop", func(r *CreateOrderRequest) {
			r.Type = OrderTypeStopLimit
			r.LimitPrice = &price
		}, true},
		{"stoplimit complete", func(r *CreateOrderRequest) {
			r.Type = OrderTypeStopLimit
			r.LimitPrice = &price
			r.StopPrice = &price
		}, false},
		{"trailing without pct", func(r *CreateOrderRequest) { r.Type = OrderTypeTrailingStop }, true},
		{"trailing with pct", func(r *CreateOrderRequest) {
			r.Type = OrderTypeTrailingStop
			r.TrailingPct = &pct
		}, false},
		{"unknown type", func(r *CreateOrderRequest) { r.Type = "iceberg" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("Validate() error does not unwrap to ErrInvalidOrder: %v", err)
			}
		})
	}
}

func TestOrder_Symbol(t *testing.T) {
	buy := Order{Side: OrderSideBuy, InputSymbol: "USDC", OutputSymbol: "SOL"}
	if got := buy.Symbol(); got != "SOL" {
		t.Errorf("buy Symbol() = %q, want SOL", got)
	}
	sell := Order{Side: OrderSideSell, InputSymbol: "SOL", OutputSymbol: "USDC"}
	if got := sell.Symbol(); got != "SOL" {
		t.Errorf("sell Symbol() = %q, want SOL", got)
	}
}

func TestTransactionEvent_Involves(t *testing.T) {
	ev := TransactionEvent{From: "alice", To: "bob"}
	if !ev.Involves("alice") || !ev.Involves("bob") {
		t.Error("Involves() should match from and to")
	}
	if ev.Involves("carol") {
		t.Error("Involves() matched unrelated wallet")
	}
	if ev.Involves("") {
		t.Error("Involves() matched empty wallet")
	}
}

func TestOrderUpdateEvent_DedupKey(t *testing.T) {
	fill := 2.5
	withFill := OrderUpdateEvent{Update: OrderUpdate{
		OrderID: "o1", Status: OrderStatusPartiallyFilled, FilledAmount: &fill,
	}}
	without := OrderUpdateEvent{Update: OrderUpdate{
		OrderID: "o1", Status: OrderStatusPartiallyFilled,
	}}
	if withFill.DedupKey() == without.DedupKey() {
		t.Error("fill amount should contribute to the dedup key")
	}
	if (MonitoringStoppedEvent{}).DedupKey() != "" {
		t.Error("monitoring-stopped events must never be deduplicated")
	}
}
