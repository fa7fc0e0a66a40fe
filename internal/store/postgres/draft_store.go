package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soltradehq/soltrade/internal/domain"
)

// DraftStore implements domain.DraftStore using PostgreSQL. The request
// payload is stored as JSONB so draft shape changes do not need migrations.
type DraftStore struct {
	pool *pgxpool.Pool
}

// NewDraftStore creates a new DraftStore backed by the given pool.
func NewDraftStore(pool *pgxpool.Pool) *DraftStore {
	return &DraftStore{pool: pool}
}

// Upsert inserts or replaces a draft by id.
func (s *DraftStore) Upsert(ctx context.Context, d domain.Draft) error {
	reqJSON, err := json.Marshal(d.Request)
	if err != nil {
		return fmt.Errorf("postgres: marshal draft request: %w", err)
	}

	const query = `
		INSERT INTO order_drafts (id, name, request, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			request = EXCLUDED.request,
			updated_at = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query, d.ID, d.Name, reqJSON, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert draft %s: %w", d.ID, err)
	}
	return nil
}

// Delete removes a draft by id. Deleting a missing draft is not an error.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM order_drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete draft %s: %w", id, err)
	}
	return nil
}

// List returns all drafts ordered by creation time.
func (s *DraftStore) List(ctx context.Context) ([]domain.Draft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, request, created_at, updated_at
		 FROM order_drafts ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []domain.Draft
	for rows.Next() {
		var d domain.Draft
		var reqJSON []byte

		if err := rows.Scan(&d.ID, &d.Name, &reqJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan draft: %w", err)
		}
		if err := json.Unmarshal(reqJSON, &d.Request); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal draft %s: %w", d.ID, err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list drafts rows: %w", err)
	}
	return drafts, nil
}

// Compile-time interface check.
var _ domain.DraftStore = (*DraftStore)(nil)
