package engine

import (
	"encoding/json"
	"fmt"

	"github.com/soltradehq/soltrade/internal/domain"
)

// orderResponse is the engine's order representation on the wire. Field names
// match the engine's JSON contract, which is the same shape the domain Order
// serializes to.
type orderResponse struct {
	Order domain.Order `json:"order"`
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type balancesResponse struct {
	WalletAddress string             `json:"wallet_address"`
	Balances      map[string]float64 `json:"balances"`
}

// errorResponse is the engine's error envelope for non-2xx replies.
type errorResponse struct {
	Error string `json:"error"`
}

// wsEnvelope frames every message pushed over the engine WebSocket.
type wsEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// decodeEvent turns a raw WebSocket frame into a typed lifecycle event.
func decodeEvent(raw []byte) (domain.LifecycleEvent, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("engine/ws: decode envelope: %w", err)
	}

	switch domain.EventKind(env.Kind) {
	case domain.EventKindOrderUpdate:
		var ev domain.OrderUpdateEvent
		if err := json.Unmarshal(env.Payload, &ev.Update); err != nil {
			return nil, fmt.Errorf("engine/ws: decode order update: %w", err)
		}
		return ev, nil

	case domain.EventKindOrderTriggered:
		var ev domain.OrderTriggeredEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("engine/ws: decode order triggered: %w", err)
		}
		return ev, nil

	case domain.EventKindTransactionUpdate:
		var ev domain.TransactionEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("engine/ws: decode transaction: %w", err)
		}
		return ev, nil

	case domain.EventKindCopyTrade:
		var ev domain.CopyTradeEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("engine/ws: decode copy trade: %w", err)
		}
		return ev, nil

	case domain.EventKindMonitoringStopped:
		// The engine sends either a bare string or {"message": "..."} here
		// depending on version.
		var msg string
		if err := json.Unmarshal(env.Payload, &msg); err == nil {
			return domain.MonitoringStoppedEvent{Message: msg}, nil
		}
		var ev domain.MonitoringStoppedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("engine/ws: decode monitoring stopped: %w", err)
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("engine/ws: unknown event kind %q", env.Kind)
	}
}
