package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soltradehq/soltrade/internal/domain"
)

// OrderArchive implements domain.OrderArchive using PostgreSQL. Archived
// orders are immutable terminal snapshots.
type OrderArchive struct {
	pool *pgxpool.Pool
}

// NewOrderArchive creates a new OrderArchive backed by the given pool.
func NewOrderArchive(pool *pgxpool.Pool) *OrderArchive {
	return &OrderArchive{pool: pool}
}

// Insert stores a terminal order. Re-inserting an already archived id is a
// no-op, which keeps archival idempotent under event redelivery.
func (s *OrderArchive) Insert(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO archived_orders (
			id, order_type, side, status,
			input_mint, output_mint, input_symbol, output_symbol,
			amount, filled_amount,
			limit_price, stop_price, trailing_percent, highest_price, lowest_price,
			linked_order_id, slippage_bps, priority_fee_micro_lamports,
			wallet_address, created_at, updated_at, triggered_at,
			tx_signature, error_message
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22,
			$23, $24
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		o.ID, string(o.Type), string(o.Side), string(o.Status),
		o.InputMint, o.OutputMint, o.InputSymbol, o.OutputSymbol,
		o.Amount, o.FilledAmount,
		o.LimitPrice, o.StopPrice, o.TrailingPct, o.HighestPrice, o.LowestPrice,
		o.LinkedOrderID, o.SlippageBps, o.PriorityFee,
		o.WalletAddress, o.CreatedAt, o.UpdatedAt, o.TriggeredAt,
		o.TxSignature, o.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("postgres: archive order %s: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, order_type, side, status,
	input_mint, output_mint, input_symbol, output_symbol,
	amount, filled_amount,
	limit_price, stop_price, trailing_percent, highest_price, lowest_price,
	linked_order_id, slippage_bps, priority_fee_micro_lamports,
	wallet_address, created_at, updated_at, triggered_at,
	tx_signature, error_message`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var orderType, side, status string

	err := scanner.Scan(
		&o.ID, &orderType, &side, &status,
		&o.InputMint, &o.OutputMint, &o.InputSymbol, &o.OutputSymbol,
		&o.Amount, &o.FilledAmount,
		&o.LimitPrice, &o.StopPrice, &o.TrailingPct, &o.HighestPrice, &o.LowestPrice,
		&o.LinkedOrderID, &o.SlippageBps, &o.PriorityFee,
		&o.WalletAddress, &o.CreatedAt, &o.UpdatedAt, &o.TriggeredAt,
		&o.TxSignature, &o.ErrorMessage,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Type = domain.OrderType(orderType)
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListByWallet returns archived orders for a wallet, most recent first.
func (s *OrderArchive) ListByWallet(ctx context.Context, walletAddress string, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM archived_orders
		WHERE wallet_address = $1
		ORDER BY updated_at DESC`
	args := []any{walletAddress}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list archived orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archived orders: %w", err)
	}
	return orders, nil
}

// ListBefore returns archived orders last updated before the given time,
// oldest first. Used by the cold-storage archiver.
func (s *OrderArchive) ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM archived_orders
		 WHERE updated_at < $1
		 ORDER BY updated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list archived orders before %s: %w", before, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archived orders: %w", err)
	}
	return orders, nil
}

// DeleteBefore removes archived orders last updated before the given time.
// Called after a successful cold-storage upload.
func (s *OrderArchive) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM archived_orders WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete archived orders before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.OrderArchive = (*OrderArchive)(nil)
