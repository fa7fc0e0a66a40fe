package domain

import (
	"context"
	"io"
	"time"
)

// ExecutionGateway is the RPC boundary to the remote execution engine. All
// calls carry their own timeout via ctx; failures are returned, never fatal.
type ExecutionGateway interface {
	// CreateOrder submits the request and returns the engine-confirmed order
	// carrying the authoritative id.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	// CancelOrder asks the engine to cancel an order by id.
	CancelOrder(ctx context.Context, orderID string) error
	// GetActiveOrders fetches the authoritative active-order snapshot for a
	// wallet.
	GetActiveOrders(ctx context.Context, walletAddress string) ([]Order, error)
	// GetBalances fetches the wallet's token balances.
	GetBalances(ctx context.Context, walletAddress string) (BalanceSnapshot, error)
}

// BalanceRefresher re-fetches authoritative balances after state-changing
// events. Refresh is fire-and-forget from the caller's perspective; errors
// are logged by the implementation, not surfaced as blocking failures.
type BalanceRefresher interface {
	Refresh(ctx context.Context, walletAddress string) error
}

// DraftStore persists order drafts across sessions.
type DraftStore interface {
	Upsert(ctx context.Context, draft Draft) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Draft, error)
}

// OrderArchive persists terminal orders. Archived orders are immutable;
// Insert is a no-op when the id already exists.
type OrderArchive interface {
	Insert(ctx context.Context, order Order) error
	ListByWallet(ctx context.Context, walletAddress string, limit int) ([]Order, error)
	ListBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// BalanceCache provides fast access to the latest balance snapshots.
type BalanceCache interface {
	Set(ctx context.Context, snap BalanceSnapshot) error
	Get(ctx context.Context, walletAddress string) (BalanceSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for UI fan-out and durable streams for the
// lifecycle-event mirror.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged order history from the database to cold storage.
type Archiver interface {
	ArchiveOrders(ctx context.Context, before time.Time) (int64, error)
}
