// Package admin exposes the moderation endpoints. Every route here sits
// behind bearer auth and the admin role gate.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/respond"
	"github.com/ayush/skill-swap/internal/swap"
	"github.com/ayush/skill-swap/internal/users"
)

type Handler struct {
	users *users.Service
	swaps *swap.Service
}

func NewHandler(u *users.Service, s *swap.Service) *Handler {
	return &Handler{users: u, swaps: s}
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Put("/users/{id}/ban", h.ToggleBan)
	r.Delete("/users/{id}", h.DeleteUser)
	r.Get("/swaps", h.ListSwaps)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListAll(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *Handler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	banned, err := h.users.ToggleBan(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	msg := "User has been unbanned."
	if banned {
		msg = "User has been banned."
	}
	respond.Message(w, http.StatusOK, msg)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	if err := h.users.Delete(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "User removed.")
}

// ListSwaps returns every swap, newest first, with party names and emails.
func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	list, err := h.swaps.ListAll(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}
