package users

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/respond"
)

// multipart framing allowance on top of the photo itself
const formOverhead = 64 << 10

// Handler holds user-related HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns the public directory.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListPublic(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, users)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	u, err := h.svc.Profile(r.Context(), id.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}
	var req models.UpdateProfileRequest
	if err := respond.DecodeLenient(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), id.UserID, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// UploadPhoto accepts a multipart form with the image in the "photo" field.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, r, models.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+formOverhead)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, fmt.Errorf("%w: photo must be at most 2 MB", models.ErrValidation))
			return
		}
		respond.Error(w, r, fmt.Errorf("%w: a photo file is required", models.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxPhotoBytes+1))
	if err != nil {
		respond.Error(w, r, fmt.Errorf("%w: could not read photo", models.ErrValidation))
		return
	}

	u, err := h.svc.UploadPhoto(r.Context(), id.UserID, data)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// Photo streams a user's uploaded profile photo.
func (h *Handler) Photo(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.svc.Photo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}
