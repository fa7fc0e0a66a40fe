package engine

import (
	"testing"

	"github.com/soltradehq/soltrade/internal/domain"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind domain.EventKind
		wantErr  bool
	}{
		{
			name:     "order update",
			raw:      `{"kind":"order-update","payload":{"order_id":"o1","status":"filled","filled_amount":2.5}}`,
			wantKind: domain.EventKindOrderUpdate,
		},
		{
			name:     "order triggered",
			raw:      `{"kind":"order-triggered","payload":{"order_id":"o1","order_type":"limit","symbol":"SOL","side":"buy","trigger_price":150.5,"amount":2}}`,
			wantKind: domain.EventKindOrderTriggered,
		},
		{
			name:     "transaction",
			raw:      `{"kind":"transaction-update","payload":{"signature":"sig-1","slot":123,"from":"a","to":"b"}}`,
			wantKind: domain.EventKindTransactionUpdate,
		},
		{
			name:     "copy trade",
			raw:      `{"kind":"copy-trade-execution","payload":{"config_id":"c1","name":"whale","status":"success"}}`,
			wantKind: domain.EventKindCopyTrade,
		},
		{
			name:     "monitoring stopped object",
			raw:      `{"kind":"monitoring-stopped","payload":{"message":"maintenance"}}`,
			wantKind: domain.EventKindMonitoringStopped,
		},
		{
			name:     "monitoring stopped bare string",
			raw:      `{"kind":"monitoring-stopped","payload":"maintenance"}`,
			wantKind: domain.EventKindMonitoringStopped,
		},
		{
			name:    "unknown kind",
			raw:     `{"kind":"price-tick","payload":{}}`,
			wantErr: true,
		},
		{
			name:    "malformed envelope",
			raw:     `{"kind":`,
			wantErr: true,
		},
		{
			name:    "malformed payload",
			raw:     `{"kind":"order-update","payload":"not an object"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeEvent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if ev.Kind() != tt.wantKind {
				t.Errorf("Kind() = %s, want %s", ev.Kind(), tt.wantKind)
			}
		})
	}
}

func TestDecodeEvent_MonitoringStoppedVariants(t *testing.T) {
	obj, err := decodeEvent([]byte(`{"kind":"monitoring-stopped","payload":{"message":"from object"}}`))
	if err != nil {
		t.Fatalf("object form: %v", err)
	}
	if got := obj.(domain.MonitoringStoppedEvent).Message; got != "from object" {
		t.Errorf("object form message = %q", got)
	}

	str, err := decodeEvent([]byte(`{"kind":"monitoring-stopped","payload":"from string"}`))
	if err != nil {
		t.Fatalf("string form: %v", err)
	}
	if got := str.(domain.MonitoringStoppedEvent).Message; got != "from string" {
		t.Errorf("string form message = %q", got)
	}
}

func TestDecodeEvent_OrderUpdateFields(t *testing.T) {
	raw := `{"kind":"order-update","payload":{"order_id":"o1","status":"partiallyfilled","filled_amount":3.5,"tx_signature":"sig"}}`
	ev, err := decodeEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	upd := ev.(domain.OrderUpdateEvent).Update
	if upd.OrderID != "o1" || upd.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("update = %+v", upd)
	}
	if upd.FilledAmount == nil || *upd.FilledAmount != 3.5 {
		t.Errorf("filled amount = %v", upd.FilledAmount)
	}
	if upd.TxSignature != "sig" {
		t.Errorf("tx signature = %q", upd.TxSignature)
	}
}
