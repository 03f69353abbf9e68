// Package service holds the sandbox storefront business logic, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
)

// OTPLifetime is how long a one-time password stays valid.
const OTPLifetime = 5 * time.Minute

var (
	// ErrInvalidInput marks requests rejected before touching storage.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOTP is returned for a wrong, unknown or expired password.
	ErrInvalidOTP = errors.New("invalid or expired OTP")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = repository.ErrNotFound
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	UpsertUser(ctx context.Context, email, name, role string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	SaveOTP(ctx context.Context, email, hash string, expiresAt time.Time) error
	OTPFor(ctx context.Context, email string) (string, time.Time, error)
	DeleteOTP(ctx context.Context, email string) error
}

// AuthService implements passwordless sign-in with emailed one-time passwords.
type AuthService struct {
	repo       AuthRepository
	tokens     *TokenManager
	adminEmail string
	log        *zap.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewAuthService constructs an AuthService. The user signing in with
// adminEmail receives the admin role.
func NewAuthService(repo AuthRepository, tokens *TokenManager, adminEmail string, log *zap.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		adminEmail: normalizeEmail(adminEmail),
		log:        log,
		now:        time.Now,
		generate:   generateOTP,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// RequestLogin issues a fresh one-time password for email. The sandbox has
// no mail transport, so the password is written to the log.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	if err := s.repo.SaveOTP(ctx, email, string(hash), s.now().Add(OTPLifetime)); err != nil {
		return err
	}

	s.log.Info("one-time password issued", zap.String("email", email), zap.String("otp", code))
	return nil
}

// Verify checks the password and signs the user in, returning the user and
// a session token. A password can be used once.
func (s *AuthService) Verify(ctx context.Context, email, otp string) (*models.User, string, error) {
	email = normalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return nil, "", fmt.Errorf("%w: email and otp are required", ErrInvalidInput)
	}

	hash, expiresAt, err := s.repo.OTPFor(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrInvalidOTP
	}
	if err != nil {
		return nil, "", err
	}
	if s.now().After(expiresAt) {
		_ = s.repo.DeleteOTP(ctx, email)
		return nil, "", ErrInvalidOTP
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(otp)); err != nil {
		return nil, "", ErrInvalidOTP
	}
	if err := s.repo.DeleteOTP(ctx, email); err != nil {
		return nil, "", err
	}

	role := models.RoleUser
	if s.adminEmail != "" && email == s.adminEmail {
		role = models.RoleAdmin
	}
	name, _, _ := strings.Cut(email, "@")

	user, err := s.repo.UpsertUser(ctx, email, name, role)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.log.Info("user signed in", zap.String("user", user.ID), zap.String("role", user.Role))
	return user, token, nil
}

// CurrentUser returns the user a session token was issued to.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.UserByID(ctx, userID)
}
