package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/service"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "token"

type ctxKey string

const (
	userKey ctxKey = "user"
	roleKey ctxKey = "role"
)

// TokenParser validates session tokens.
type TokenParser interface {
	Parse(token string) (*service.Claims, error)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// TokenAuth rejects requests without a valid session token and stores the
// token's user id and role in the request context.
func TokenAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(TokenHeader)
			if raw == "" {
				writeMessage(w, http.StatusUnauthorized, "Please login")
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Session expired, please login again")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly lets through requests whose token carries the admin role. It
// must run after TokenAuth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(roleKey).(string); role != models.RoleAdmin {
			writeMessage(w, http.StatusForbidden, "You are not admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserID returns a context carrying userID, as TokenAuth would set it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}
