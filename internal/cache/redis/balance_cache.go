package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soltradehq/soltrade/internal/domain"
)

// balanceTTL bounds staleness when the refresher stops firing; the UI falls
// back to a fresh gateway fetch on a miss.
const balanceTTL = 10 * time.Minute

// BalanceCache implements domain.BalanceCache using Redis string keys. Each
// wallet's snapshot is stored as JSON at "balance:{wallet}".
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(walletAddress string) string {
	return "balance:" + walletAddress
}

// Set stores the latest balance snapshot for a wallet.
func (bc *BalanceCache) Set(ctx context.Context, snap domain.BalanceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal balance snapshot: %w", err)
	}
	if err := bc.rdb.Set(ctx, balanceKey(snap.WalletAddress), data, balanceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", snap.WalletAddress, err)
	}
	return nil
}

// Get retrieves the latest balance snapshot for a wallet. It returns
// domain.ErrNotFound when no snapshot is cached.
func (bc *BalanceCache) Get(ctx context.Context, walletAddress string) (domain.BalanceSnapshot, error) {
	data, err := bc.rdb.Get(ctx, balanceKey(walletAddress)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BalanceSnapshot{}, domain.ErrNotFound
		}
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: get balance %s: %w", walletAddress, err)
	}

	var snap domain.BalanceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: decode balance %s: %w", walletAddress, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.BalanceCache = (*BalanceCache)(nil)
