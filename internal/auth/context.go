package auth

import (
	"context"

	"github.com/ayush/skill-swap/internal/models"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   models.Role
}

type identityKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the caller placed by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireRole reports whether id holds role.
func RequireRole(id Identity, role models.Role) bool {
	return id.Role == role
}
