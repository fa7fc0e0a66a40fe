package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/soltradehq/soltrade/internal/domain"
)

// DraftService defines the methods the draft handler requires from the order
// store.
type DraftService interface {
	AddDraft(name string, req domain.CreateOrderRequest) domain.Draft
	UpdateDraft(id, name string, req domain.CreateOrderRequest) (domain.Draft, error)
	DeleteDraft(id string)
	Draft(id string) (domain.Draft, bool)
	Drafts() []domain.Draft
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
}

// DraftHandler serves order-draft HTTP endpoints. Draft CRUD is local only;
// no engine call happens until a draft is submitted.
type DraftHandler struct {
	drafts DraftService
	logger *slog.Logger
}

// NewDraftHandler creates a DraftHandler.
func NewDraftHandler(drafts DraftService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		drafts: drafts,
		logger: logger,
	}
}

type draftRequest struct {
	Name    string                    `json:"name"`
	Request domain.CreateOrderRequest `json:"request"`
}

// ListDrafts returns all drafts.
// GET /api/drafts
func (h *DraftHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts := h.drafts.Drafts()
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

// CreateDraft stores a new draft.
// POST /api/drafts
func (h *DraftHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	draft := h.drafts.AddDraft(req.Name, req.Request)
	writeJSON(w, http.StatusCreated, map[string]any{"draft": draft})
}

// UpdateDraft replaces an existing draft's name and request.
// PUT /api/drafts/{id}
func (h *DraftHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing draft id")
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	draft, err := h.drafts.UpdateDraft(id, req.Name, req.Request)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update draft failed",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update draft")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

// DeleteDraft removes a draft by id. Deleting a missing draft is a no-op.
// DELETE /api/drafts/{id}
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing draft id")
		return
	}

	h.drafts.DeleteDraft(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "deleted",
		"draft_id": id,
	})
}

// SubmitDraft submits the draft's request as a live order. The draft is kept;
// the caller deletes it explicitly if desired.
// POST /api/drafts/{id}/submit
func (h *DraftHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing draft id")
		return
	}

	draft, ok := h.drafts.Draft(id)
	if !ok {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}

	ord, err := h.drafts.CreateOrder(r.Context(), draft.Request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: submit draft failed",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to submit draft")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"order": ord})
}
