package domain

import (
	"strings"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType selects the execution trigger for an order.
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStopLimit    OrderType = "stoplimit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeTrailingStop OrderType = "trailingstop"
)

// OrderStatus tracks the order lifecycle. pending is the only initial state;
// filled, cancelled, expired and failed are terminal and never regress.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partiallyfilled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusFailed          OrderStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an order may move from s to next.
// partiallyfilled may re-enter itself for successive fills.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case OrderStatusPending:
		return next != OrderStatusPending
	case OrderStatusPartiallyFilled:
		return next == OrderStatusPartiallyFilled || next.IsTerminal()
	default:
		return false
	}
}

// Order represents a single unit of trading intent and its lifecycle state.
type Order struct {
	ID            string      `json:"id"`
	Type          OrderType   `json:"order_type"`
	Side          OrderSide   `json:"side"`
	Status        OrderStatus `json:"status"`
	InputMint     string      `json:"input_mint"`
	OutputMint    string      `json:"output_mint"`
	InputSymbol   string      `json:"input_symbol"`
	OutputSymbol  string      `json:"output_symbol"`
	Amount        float64     `json:"amount"`
	FilledAmount  float64     `json:"filled_amount"`
	LimitPrice    *float64    `json:"limit_price,omitempty"`
	StopPrice     *float64    `json:"stop_price,omitempty"`
	TrailingPct   *float64    `json:"trailing_percent,omitempty"`
	HighestPrice  *float64    `json:"highest_price,omitempty"`
	LowestPrice   *float64    `json:"lowest_price,omitempty"`
	LinkedOrderID string      `json:"linked_order_id,omitempty"`
	SlippageBps   int         `json:"slippage_bps"`
	PriorityFee   int         `json:"priority_fee_micro_lamports"`
	WalletAddress string      `json:"wallet_address"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	TriggeredAt   *time.Time  `json:"triggered_at,omitempty"`
	TxSignature   string      `json:"tx_signature,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
}

// Symbol returns the symbol of the asset being acquired, which is the one
// users care about in notifications.
func (o Order) Symbol() string {
	if o.Side == OrderSideBuy {
		return o.OutputSymbol
	}
	return o.InputSymbol
}

// CreateOrderRequest carries the user's intent to open a new order.
type CreateOrderRequest struct {
	Type          OrderType `json:"order_type"`
	Side          OrderSide `json:"side"`
	InputMint     string    `json:"input_mint"`
	OutputMint    string    `json:"output_mint"`
	InputSymbol   string    `json:"input_symbol"`
	OutputSymbol  string    `json:"output_symbol"`
	Amount        float64   `json:"amount"`
	LimitPrice    *float64  `json:"limit_price,omitempty"`
	StopPrice     *float64  `json:"stop_price,omitempty"`
	TrailingPct   *float64  `json:"trailing_percent,omitempty"`
	LinkedOrderID string    `json:"linked_order_id,omitempty"`
	SlippageBps   int       `json:"slippage_bps"`
	PriorityFee   int       `json:"priority_fee_micro_lamports"`
	WalletAddress string    `json:"wallet_address"`
}

// Validate checks the request before any network call is made.
func (r CreateOrderRequest) Validate() error {
	if r.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if strings.TrimSpace(r.WalletAddress) == "" {
		return &ValidationError{Field: "wallet_address", Reason: "is required"}
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return &ValidationError{Field: "side", Reason: "must be buy or sell"}
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.LimitPrice == nil || *r.LimitPrice <= 0 {
			return &ValidationError{Field: "limit_price", Reason: "is required for limit orders"}
		}
	case OrderTypeStop:
		if r.StopPrice == nil || *r.StopPrice <= 0 {
			return &ValidationError{Field: "stop_price", Reason: "is required for stop orders"}
		}
	case OrderTypeStopLimit:
		if r.LimitPrice == nil || *r.LimitPrice <= 0 {
			return &ValidationError{Field: "limit_price", Reason: "is required for stop-limit orders"}
		}
		if r.StopPrice == nil || *r.StopPrice <= 0 {
			return &ValidationError{Field: "stop_price", Reason: "is required for stop-limit orders"}
		}
	case OrderTypeTrailingStop:
		if r.TrailingPct == nil || *r.TrailingPct <= 0 {
			return &ValidationError{Field: "trailing_percent", Reason: "is required for trailing-stop orders"}
		}
	default:
		return &ValidationError{Field: "order_type", Reason: "unknown order type"}
	}
	return nil
}

// OrderUpdate is a partial, authoritative update applied during
// reconciliation. Nil pointer fields are left untouched on the order.
type OrderUpdate struct {
	OrderID       string      `json:"order_id"`
	Status        OrderStatus `json:"status"`
	FilledAmount  *float64    `json:"filled_amount,omitempty"`
	TxSignature   string      `json:"tx_signature,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	WalletAddress string      `json:"wallet_address,omitempty"`
}
