package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// createUser validates uniqueness, hashes the password and persists the account.
func createUser(ctx context.Context, users repository.UserRepository, cost int, username, email, password string, isAdmin bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("username, email and password are required", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}

	if err := ensureAbsent(users.GetByUsername(ctx, username)); err != nil {
		if errors.Is(err, errTaken) {
			return nil, apperrors.NewConflict("username already exists", map[string]any{"field": "username"})
		}
		return nil, err
	}
	if err := ensureAbsent(users.GetByEmail(ctx, email)); err != nil {
		if errors.Is(err, errTaken) {
			return nil, apperrors.NewConflict("email already exists", map[string]any{"field": "email"})
		}
		return nil, err
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "password"})
		}
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var errTaken = errors.New("already taken")

func ensureAbsent(_ *domain.User, err error) error {
	switch {
	case err == nil:
		return errTaken
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	default:
		return err
	}
}
