package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soltradehq/soltrade/internal/domain"
)

// Draft operations are pure local CRUD: no network effects, single writer.
// Durability is a session-boundary concern handled by LoadDrafts/SaveDrafts.

// AddDraft stores a new draft built from the given request and returns it.
func (s *Store) AddDraft(name string, req domain.CreateOrderRequest) domain.Draft {
	now := time.Now().UTC()
	draft := domain.Draft{
		ID:        uuid.NewString(),
		Name:      name,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.draftsByID[draft.ID] = draft
	delete(s.deletedDrafts, draft.ID)
	s.mu.Unlock()

	return draft
}

// UpdateDraft replaces the request (and optionally the name) of an existing
// draft. Returns ErrNotFound for unknown ids.
func (s *Store) UpdateDraft(id, name string, req domain.CreateOrderRequest) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.draftsByID[id]
	if !ok {
		return domain.Draft{}, fmt.Errorf("orders: update draft %q: %w", id, domain.ErrNotFound)
	}
	draft.Request = req
	if name != "" {
		draft.Name = name
	}
	draft.UpdatedAt = time.Now().UTC()
	s.draftsByID[id] = draft
	return draft, nil
}

// DeleteDraft removes a draft. Deleting an unknown id is a no-op.
func (s *Store) DeleteDraft(id string) {
	s.mu.Lock()
	if _, ok := s.draftsByID[id]; ok {
		delete(s.draftsByID, id)
		s.deletedDrafts[id] = struct{}{}
	}
	s.mu.Unlock()
}

// Draft returns a single draft by id.
func (s *Store) Draft(id string) (domain.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.draftsByID[id]
	return draft, ok
}

// Drafts returns all drafts ordered by creation time.
func (s *Store) Drafts() []domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Draft, 0, len(s.draftsByID))
	for _, d := range s.draftsByID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// LoadDrafts replaces the in-memory draft collection with the persisted one.
// Called once at session start; a missing draft store is a no-op.
func (s *Store) LoadDrafts(ctx context.Context) error {
	if s.drafts == nil {
		return nil
	}
	persisted, err := s.drafts.List(ctx)
	if err != nil {
		return fmt.Errorf("orders: load drafts: %w", err)
	}

	s.mu.Lock()
	s.draftsByID = make(map[string]domain.Draft, len(persisted))
	for _, d := range persisted {
		s.draftsByID[d.ID] = d
	}
	s.deletedDrafts = make(map[string]struct{})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "drafts loaded", slog.Int("count", len(persisted)))
	return nil
}

// SaveDrafts flushes the current draft collection to the draft store,
// removing drafts deleted during the session. Called on shutdown.
func (s *Store) SaveDrafts(ctx context.Context) error {
	if s.drafts == nil {
		return nil
	}

	s.mu.Lock()
	current := make([]domain.Draft, 0, len(s.draftsByID))
	for _, d := range s.draftsByID {
		current = append(current, d)
	}
	deleted := make([]string, 0, len(s.deletedDrafts))
	for id := range s.deletedDrafts {
		deleted = append(deleted, id)
	}
	s.mu.Unlock()

	for _, d := range current {
		if err := s.drafts.Upsert(ctx, d); err != nil {
			return fmt.Errorf("orders: save draft %q: %w", d.ID, err)
		}
	}
	for _, id := range deleted {
		if err := s.drafts.Delete(ctx, id); err != nil {
			return fmt.Errorf("orders: delete draft %q: %w", id, err)
		}
	}

	s.mu.Lock()
	s.deletedDrafts = make(map[string]struct{})
	s.mu.Unlock()
	return nil
}
