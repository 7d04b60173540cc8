package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shelfspace/inventory-be/internal/auth"
	"github.com/shelfspace/inventory-be/internal/http/respond"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
)

type contextKey int

const userKey contextKey = 0

// RequireAuth validates the bearer token, loads the current identity, and
// stores it in the request context. Soft-deleted users are rejected even with
// a valid token.
func RequireAuth(tokens *auth.TokenManager, users storage.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := tokens.Validate(strings.TrimPrefix(header, prefix))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := users.FindUserByID(r.Context(), claims.UserID)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// UserFromContext returns the identity stored by RequireAuth.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// RequireRole rejects requests whose identity does not carry at least the
// given privilege. Must be mounted after RequireAuth.
func RequireRole(minimum models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !user.Role.AtLeast(minimum) {
				respond.Error(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
