package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

var errInvalidCredentials = apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil)

// LoginInput carries the credentials and request facts of a login.
type LoginInput struct {
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
}

// AuthService coordinates registration, login and account self-service.
type AuthService struct {
	users      repository.UserRepository
	issuer     *auth.Issuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Issuer     *auth.Issuer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		issuer:     deps.Issuer,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

// Register creates a regular account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, string, time.Time, error) {
	user, err := createUser(ctx, s.users, s.bcryptCost, username, email, password, false)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Login checks credentials, issues a token and records the attempt.
// The identifier is matched against email when it contains '@', otherwise
// against username.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.User, string, time.Time, error) {
	user, err := s.lookup(ctx, in.Identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.publishAttempt(ctx, nil, in, false)
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		s.publishAttempt(ctx, &user.ID, in, false)
		return nil, "", time.Time{}, errInvalidCredentials
	}

	token, exp, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		now := s.now().UTC()
		user.LastLogin = &now
	}
	s.publishAttempt(ctx, &user.ID, in, true)
	return user, token, exp, nil
}

// Profile returns the account behind an authenticated subject.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"field": "current_password"})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "new_password"})
		}
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, pgx.ErrNoRows
	}
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *AuthService) publishAttempt(ctx context.Context, userID *int64, in LoginInput, success bool) {
	if s.dispatcher == nil {
		return
	}
	eventType := events.EventLoginFailed
	if success {
		eventType = events.EventLoginSucceeded
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: s.now().UTC(),
		Payload: events.LoginAttemptPayload{
			UserID:    userID,
			IPAddress: in.IPAddress,
			UserAgent: in.UserAgent,
		},
	})
	if err != nil {
		s.logger.Warn("publish login attempt", zap.Error(err))
	}
}
