package auth

import (
	"net/http"

	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/respond"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sessionResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Token string      `json:"token"`
}

func toResponse(s *Session) sessionResponse {
	return sessionResponse{
		ID:    s.User.ID,
		Name:  s.User.Name,
		Email: s.User.Email,
		Role:  s.User.Role,
		Token: s.Token,
	}
}

// Register creates a new user and returns a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	sess, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toResponse(sess))
}

// Login authenticates a user and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toResponse(sess))
}

// Logout revokes the caller's tokens.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	if err := h.svc.Logout(r.Context(), id.UserID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Logged out")
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}

	u, err := h.svc.Me(r.Context(), id.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}
