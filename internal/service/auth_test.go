package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
)

type mockAuthRepo struct {
	UpsertUserFunc func(ctx context.Context, email, name, role string) (*models.User, error)
	UserByIDFunc   func(ctx context.Context, id string) (*models.User, error)
	SaveOTPFunc    func(ctx context.Context, email, hash string, expiresAt time.Time) error
	OTPForFunc     func(ctx context.Context, email string) (string, time.Time, error)
	DeleteOTPFunc  func(ctx context.Context, email string) error
}

func (m *mockAuthRepo) UpsertUser(ctx context.Context, email, name, role string) (*models.User, error) {
	return m.UpsertUserFunc(ctx, email, name, role)
}
func (m *mockAuthRepo) UserByID(ctx context.Context, id string) (*models.User, error) {
	return m.UserByIDFunc(ctx, id)
}
func (m *mockAuthRepo) SaveOTP(ctx context.Context, email, hash string, expiresAt time.Time) error {
	return m.SaveOTPFunc(ctx, email, hash, expiresAt)
}
func (m *mockAuthRepo) OTPFor(ctx context.Context, email string) (string, time.Time, error) {
	return m.OTPForFunc(ctx, email)
}
func (m *mockAuthRepo) DeleteOTP(ctx context.Context, email string) error {
	return m.DeleteOTPFunc(ctx, email)
}

// memoryOTPs wires the OTP functions of a mockAuthRepo to a map.
func memoryOTPs(repo *mockAuthRepo) {
	type entry struct {
		hash    string
		expires time.Time
	}
	store := map[string]entry{}
	repo.SaveOTPFunc = func(_ context.Context, email, hash string, expiresAt time.Time) error {
		store[email] = entry{hash, expiresAt}
		return nil
	}
	repo.OTPForFunc = func(_ context.Context, email string) (string, time.Time, error) {
		e, ok := store[email]
		if !ok {
			return "", time.Time{}, repository.ErrNotFound
		}
		return e.hash, e.expires, nil
	}
	repo.DeleteOTPFunc = func(_ context.Context, email string) error {
		delete(store, email)
		return nil
	}
}

func newTestAuth(repo *mockAuthRepo, admin string, log *zap.Logger) *AuthService {
	s := NewAuthService(repo, NewTokenManager("secret", time.Hour), admin, log)
	s.generate = func() (string, error) { return "123456", nil }
	return s
}

func TestRequestLogin_InvalidEmail(t *testing.T) {
	s := newTestAuth(&mockAuthRepo{}, "", zap.NewNop())
	for _, email := range []string{"", "   ", "no-at-sign"} {
		err := s.RequestLogin(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidInput, email)
	}
}

func TestRequestLogin_LogsOTP(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := &mockAuthRepo{}
	memoryOTPs(repo)
	s := newTestAuth(repo, "", zap.New(core))

	require.NoError(t, s.RequestLogin(context.Background(), " Ann@Shop.Test "))

	entries := logs.FilterMessage("one-time password issued").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ann@shop.test", fields["email"])
	assert.Equal(t, "123456", fields["otp"])
}

func TestVerify_SignsIn(t *testing.T) {
	repo := &mockAuthRepo{}
	memoryOTPs(repo)
	var gotRole, gotName string
	repo.UpsertUserFunc = func(_ context.Context, email, name, role string) (*models.User, error) {
		gotName, gotRole = name, role
		return &models.User{ID: "u1", Email: email, Name: name, Role: role}, nil
	}
	s := newTestAuth(repo, "", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.RequestLogin(ctx, "ann@shop.test"))
	user, token, err := s.Verify(ctx, "ANN@shop.test", "123456")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "ann", gotName)
	assert.Equal(t, models.RoleUser, gotRole)

	claims, err := s.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, _, err = s.Verify(ctx, "ann@shop.test", "123456")
	assert.ErrorIs(t, err, ErrInvalidOTP, "password is single use")
}

func TestVerify_AdminEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	memoryOTPs(repo)
	repo.UpsertUserFunc = func(_ context.Context, email, name, role string) (*models.User, error) {
		return &models.User{ID: "a1", Email: email, Role: role}, nil
	}
	s := newTestAuth(repo, "Boss@Shop.Test", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.RequestLogin(ctx, "boss@shop.test"))
	user, _, err := s.Verify(ctx, "boss@shop.test", "123456")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
}

func TestVerify_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code", func(t *testing.T) {
		repo := &mockAuthRepo{}
		memoryOTPs(repo)
		s := newTestAuth(repo, "", zap.NewNop())
		require.NoError(t, s.RequestLogin(ctx, "a@b.c"))
		_, _, err := s.Verify(ctx, "a@b.c", "000000")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := &mockAuthRepo{}
		memoryOTPs(repo)
		s := newTestAuth(repo, "", zap.NewNop())
		_, _, err := s.Verify(ctx, "a@b.c", "123456")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("expired", func(t *testing.T) {
		repo := &mockAuthRepo{}
		memoryOTPs(repo)
		s := newTestAuth(repo, "", zap.NewNop())
		require.NoError(t, s.RequestLogin(ctx, "a@b.c"))
		s.now = func() time.Time { return time.Now().Add(OTPLifetime + time.Minute) }
		_, _, err := s.Verify(ctx, "a@b.c", "123456")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("missing fields", func(t *testing.T) {
		s := newTestAuth(&mockAuthRepo{}, "", zap.NewNop())
		_, _, err := s.Verify(ctx, "a@b.c", " ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("storage error", func(t *testing.T) {
		wantErr := errors.New("db down")
		repo := &mockAuthRepo{
			OTPForFunc: func(context.Context, string) (string, time.Time, error) {
				return "", time.Time{}, wantErr
			},
		}
		s := newTestAuth(repo, "", zap.NewNop())
		_, _, err := s.Verify(ctx, "a@b.c", "123456")
		assert.ErrorIs(t, err, wantErr)
	})
}

func TestCurrentUser(t *testing.T) {
	repo := &mockAuthRepo{
		UserByIDFunc: func(_ context.Context, id string) (*models.User, error) {
			if id != "u1" {
				return nil, repository.ErrNotFound
			}
			return &models.User{ID: "u1"}, nil
		},
	}
	s := newTestAuth(repo, "", zap.NewNop())

	u, err := s.CurrentUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = s.CurrentUser(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateOTP(t *testing.T) {
	code, err := generateOTP()
	require.NoError(t, err)
	assert.Len(t, code, 6)
}
