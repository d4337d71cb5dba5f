package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/models"
	"github.com/ayush/skill-swap/internal/respond"
)

// Authenticator resolves a bearer token to the calling identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// RequireAuth is middleware that validates the bearer token and
// injects the caller's identity into the request context.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond.Error(w, r, fmt.Errorf("%w: not authorized, no token", models.ErrUnauthorized))
				return
			}

			id, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			respond.Error(w, r, fmt.Errorf("%w: not authorized, no token", models.ErrUnauthorized))
			return
		}
		if !auth.RequireRole(id, models.RoleAdmin) {
			respond.Error(w, r, fmt.Errorf("%w: not authorized as an admin", models.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
