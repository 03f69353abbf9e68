// Package repository provides PostgreSQL persistence for the sandbox
// storefront services.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/GophShop/internal/models"
)

// ErrNotFound is returned when the requested row does not exist or does not
// belong to the caller.
var ErrNotFound = errors.New("not found")

// PostgresAuthRepository stores users and their pending one-time passwords.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UpsertUser returns the user registered under email, creating it on first
// sign-in. An existing user is promoted when role is admin and is never
// demoted.
func (s *PostgresAuthRepository) UpsertUser(ctx context.Context, email, name, role string) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, role) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET role = CASE WHEN EXCLUDED.role = 'admin' THEN 'admin' ELSE users.role END
		RETURNING id, name, email, role
	`, uuid.NewString(), name, email, role).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		return nil, fmt.Errorf("UpsertUser: %w", err)
	}
	return &u, nil
}

// UserByID loads a user by identifier.
func (s *PostgresAuthRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, email, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("UserByID: %w", err)
	}
	return &u, nil
}

// SaveOTP stores the hashed password for email, replacing any earlier one.
func (s *PostgresAuthRepository) SaveOTP(ctx context.Context, email, hash string, expiresAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO otps (email, hash, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET hash = EXCLUDED.hash, expires_at = EXCLUDED.expires_at
	`, email, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("SaveOTP: %w", err)
	}
	return nil
}

// OTPFor returns the stored hash and its expiry for email.
func (s *PostgresAuthRepository) OTPFor(ctx context.Context, email string) (string, time.Time, error) {
	var (
		hash      string
		expiresAt time.Time
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT hash, expires_at FROM otps WHERE email = $1`, email,
	).Scan(&hash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("OTPFor: %w", err)
	}
	return hash, expiresAt, nil
}

// DeleteOTP removes the password for email once it has been used.
func (s *PostgresAuthRepository) DeleteOTP(ctx context.Context, email string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM otps WHERE email = $1`, email); err != nil {
		return fmt.Errorf("DeleteOTP: %w", err)
	}
	return nil
}
