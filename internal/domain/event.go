package domain

import (
	"strconv"
	"time"
)

// EventKind discriminates the lifecycle events pushed by the execution
// engine. The set is closed: adding a kind means adding a payload type and
// every type switch over LifecycleEvent fails to cover it until updated.
type EventKind string

const (
	EventKindOrderUpdate       EventKind = "order-update"
	EventKindOrderTriggered    EventKind = "order-triggered"
	EventKindTransactionUpdate EventKind = "transaction-update"
	EventKindCopyTrade         EventKind = "copy-trade-execution"
	EventKindMonitoringStopped EventKind = "monitoring-stopped"
)

// LifecycleEvent is the closed sum of backend-pushed facts. Events are
// immutable, may arrive out of order, and may be delivered more than once.
type LifecycleEvent interface {
	Kind() EventKind
	// DedupKey identifies a delivery for duplicate suppression. Events
	// without a natural identity return "" and are never deduplicated.
	DedupKey() string
}

// OrderUpdateEvent carries an authoritative order snapshot.
type OrderUpdateEvent struct {
	Update OrderUpdate
}

func (e OrderUpdateEvent) Kind() EventKind { return EventKindOrderUpdate }

func (e OrderUpdateEvent) DedupKey() string {
	key := e.Update.OrderID + "|" + string(e.Update.Status)
	if e.Update.FilledAmount != nil {
		return key + "|" + formatAmount(*e.Update.FilledAmount)
	}
	return key
}

// OrderTriggeredEvent signals that a conditional order's trigger condition
// fired. It does not itself change order status; a subsequent order-update
// carries the status change.
type OrderTriggeredEvent struct {
	OrderID      string    `json:"order_id"`
	OrderType    OrderType `json:"order_type"`
	Symbol       string    `json:"symbol"`
	Side         OrderSide `json:"side"`
	TriggerPrice float64   `json:"trigger_price"`
	Amount       float64   `json:"amount"`
}

func (e OrderTriggeredEvent) Kind() EventKind  { return EventKindOrderTriggered }
func (e OrderTriggeredEvent) DedupKey() string { return e.OrderID + "|triggered" }

// TransactionEvent is raw on-chain activity observed for a watched wallet.
type TransactionEvent struct {
	Signature string  `json:"signature"`
	Slot      int64   `json:"slot"`
	Timestamp int64   `json:"timestamp"`
	TxType    string  `json:"type,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	From      string  `json:"from,omitempty"`
	To        string  `json:"to,omitempty"`
}

func (e TransactionEvent) Kind() EventKind  { return EventKindTransactionUpdate }
func (e TransactionEvent) DedupKey() string { return e.Signature }

// Involves reports whether the transaction touches the given wallet.
func (e TransactionEvent) Involves(wallet string) bool {
	if wallet == "" {
		return false
	}
	return e.From == wallet || e.To == wallet
}

// CopyTradeEvent reports the outcome of a mirrored trade.
type CopyTradeEvent struct {
	ConfigID     string  `json:"config_id"`
	Name         string  `json:"name"`
	SourceWallet string  `json:"source_wallet"`
	Amount       float64 `json:"amount"`
	Symbol       string  `json:"symbol"`
	Status       string  `json:"status"`
	TxSignature  string  `json:"tx_signature,omitempty"`
}

func (e CopyTradeEvent) Kind() EventKind  { return EventKindCopyTrade }
func (e CopyTradeEvent) DedupKey() string { return e.TxSignature }

// Succeeded reports whether the mirrored trade executed.
func (e CopyTradeEvent) Succeeded() bool { return e.Status == "success" }

// MonitoringStoppedEvent is a degraded-mode signal: server-side order
// monitoring has stopped and conditional orders may not execute.
type MonitoringStoppedEvent struct {
	Message string `json:"message,omitempty"`
}

func (e MonitoringStoppedEvent) Kind() EventKind  { return EventKindMonitoringStopped }
func (e MonitoringStoppedEvent) DedupKey() string { return "" }

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BalanceSnapshot is the cached per-wallet balance view refreshed after
// state-changing events.
type BalanceSnapshot struct {
	WalletAddress string             `json:"wallet_address"`
	Balances      map[string]float64 `json:"balances"`
	FetchedAt     time.Time          `json:"fetched_at"`
}
