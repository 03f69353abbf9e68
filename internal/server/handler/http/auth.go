// Package http provides the sandbox storefront HTTP handlers and router.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
	"github.com/atinyakov/GophShop/internal/models"
)

// AuthService defines the authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// RequestLogin issues a one-time password for the email.
	RequestLogin(ctx context.Context, email string) error
	// Verify exchanges email and password for the user and a session token.
	Verify(ctx context.Context, email, otp string) (*models.User, string, error)
	// CurrentUser loads the user behind a session.
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// AuthHandler handles sign-in requests.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// Login handles POST /api/user/login with a JSON body {"email"}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.AuthService.RequestLogin(r.Context(), req.Email); err != nil {
		writeError(w, h.Log, err, "User not found")
		return
	}
	writeMessage(w, http.StatusOK, "OTP sent to your email")
}

// Verify handles POST /api/user/verify with a JSON body {"email","otp"} and
// answers with the user and session token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, token, err := h.AuthService.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, h.Log, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome " + user.Name,
		"user":    user,
		"token":   token,
	})
}

// Me handles GET /api/user/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.AuthService.CurrentUser(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
