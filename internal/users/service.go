// Package users serves profiles, the public directory and the moderation
// actions admins take on accounts.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ayush/skill-swap/internal/models"
)

// MaxPhotoBytes caps profile photo uploads.
const MaxPhotoBytes = 2 << 20

var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Store defines the interface for user persistence.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListPublicUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	SetProfilePhoto(ctx context.Context, id, url string) error
	// SetBanned applies only when the flag currently holds !banned.
	SetBanned(ctx context.Context, id string, banned bool) error
	DeleteUser(ctx context.Context, id string) error
	DeleteSwapsByParticipant(ctx context.Context, userID string) (int64, error)
}

// PhotoStore keeps profile photo blobs.
type PhotoStore interface {
	PutPhoto(ctx context.Context, userID string, data []byte, contentType string) error
	GetPhoto(ctx context.Context, userID string) ([]byte, string, error)
	RemovePhoto(ctx context.Context, userID string) error
}

// Revoker invalidates a user's outstanding tokens.
type Revoker interface {
	Bump(ctx context.Context, userID string) (int64, error)
	Forget(ctx context.Context, userID string) error
}

type Service struct {
	store   Store
	photos  PhotoStore
	revoker Revoker
}

// NewService creates a Service. photos may be nil, which disables uploads.
func NewService(store Store, photos PhotoStore, revoker Revoker) *Service {
	return &Service{store: store, photos: photos, revoker: revoker}
}

// ListPublic returns the users who opted into the public directory.
func (s *Service) ListPublic(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListPublicUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public users: %w", err)
	}
	return users, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return u, nil
}

// UpdateProfile applies the fields present in req.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	if err := req.Apply(u); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return u, nil
}

// PhotoURL is where a user's uploaded photo is served.
func PhotoURL(userID string) string {
	return "/api/users/" + userID + "/photo"
}

// UploadPhoto stores data as the user's profile photo. The content type is
// sniffed, not taken from the client.
func (s *Service) UploadPhoto(ctx context.Context, userID string, data []byte) (*models.User, error) {
	if s.photos == nil {
		return nil, fmt.Errorf("%w: photo uploads are not enabled", models.ErrInvalidState)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: photo is empty", models.ErrValidation)
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("%w: photo must be at most 2 MB", models.ErrValidation)
	}
	contentType := http.DetectContentType(data)
	if !photoTypes[contentType] {
		return nil, fmt.Errorf("%w: photo must be a JPEG, PNG or WebP image", models.ErrValidation)
	}

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	if err := s.photos.PutPhoto(ctx, userID, data, contentType); err != nil {
		return nil, err
	}
	if err := s.store.SetProfilePhoto(ctx, userID, PhotoURL(userID)); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	slog.InfoContext(ctx, "profile photo uploaded", "user_id", userID, "bytes", len(data), "content_type", contentType)
	return u, nil
}

// Photo returns the stored photo and its content type.
func (s *Service) Photo(ctx context.Context, userID string) ([]byte, string, error) {
	if s.photos == nil {
		return nil, "", fmt.Errorf("photo: %w", models.ErrNotFound)
	}
	data, contentType, err := s.photos.GetPhoto(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("photo: %w", err)
	}
	return data, contentType, nil
}

// ListAll returns every account for moderation.
func (s *Service) ListAll(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ToggleBan flips the target's ban flag and reports the new value. Banning
// revokes the target's tokens immediately. A toggle that races another one
// fails with models.ErrPreconditionFailed.
func (s *Service) ToggleBan(ctx context.Context, actorID, targetID string) (bool, error) {
	if actorID == targetID {
		return false, fmt.Errorf("%w: you cannot ban yourself", models.ErrValidation)
	}
	u, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		return false, fmt.Errorf("user: %w", err)
	}

	banned := !u.IsBanned
	if err := s.store.SetBanned(ctx, targetID, banned); err != nil {
		return false, fmt.Errorf("user: %w", err)
	}
	if banned {
		if _, err := s.revoker.Bump(ctx, targetID); err != nil {
			return true, fmt.Errorf("revoke tokens: %w", err)
		}
	}
	slog.InfoContext(ctx, "user ban toggled", "admin_id", actorID, "user_id", targetID, "banned", banned)
	return banned, nil
}

// Delete removes the target account together with every swap it takes part
// in.
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return fmt.Errorf("%w: you cannot delete your own account", models.ErrValidation)
	}
	if _, err := s.store.GetUserByID(ctx, targetID); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	n, err := s.store.DeleteSwapsByParticipant(ctx, targetID)
	if err != nil {
		return fmt.Errorf("delete swaps: %w", err)
	}
	if err := s.store.DeleteUser(ctx, targetID); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	if s.photos != nil {
		if err := s.photos.RemovePhoto(ctx, targetID); err != nil {
			slog.WarnContext(ctx, "remove profile photo", "user_id", targetID, "error", err)
		}
	}
	if err := s.revoker.Forget(ctx, targetID); err != nil {
		slog.WarnContext(ctx, "forget token version", "user_id", targetID, "error", err)
	}
	slog.InfoContext(ctx, "user deleted", "admin_id", actorID, "user_id", targetID, "swaps_removed", n)
	return nil
}
