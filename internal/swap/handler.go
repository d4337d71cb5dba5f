package swap

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/respond"
)

// Handler holds swap HTTP handlers. All of them require an authenticated
// caller.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the swap endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Put("/{id}", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/rate", h.Rate)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	var req models.CreateSwapRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	sw, err := h.svc.Create(r.Context(), id.UserID, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, sw)
}

// List returns the caller's swaps, sent and received, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	views, err := h.svc.ListForUser(r.Context(), id.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, views)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	var req models.UpdateSwapStatusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	sw, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), id.UserID, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, sw)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Swap request removed")
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	var req models.RateSwapRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.svc.CompleteAndRate(r.Context(), chi.URLParam(r, "id"), id.UserID, req); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Rating submitted and swap completed.")
}
