package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/internal/auth"
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// Auth provides session-token authentication middleware.
type Auth struct {
	authn Authenticator
}

// NewAuth creates a new Auth middleware.
func NewAuth(a Authenticator) *Auth {
	return &Auth{authn: a}
}

// Authenticate requires a valid Bearer token and sets the user id in the
// request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		userID, err := a.authn.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				slog.Error("token validation failed", "error", err)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to validate token", nil)
				return
			}
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}

// OptionalAuthenticate sets the user id when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Auth) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractBearerToken(r); token != "" {
			if userID, err := a.authn.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(SetUserID(r.Context(), userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
