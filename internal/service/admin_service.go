package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

const (
	recentAttemptsLimit = 10
	analyticsHours      = 24
)

// AdminService backs the admin-only endpoints.
type AdminService struct {
	users      repository.UserRepository
	attempts   repository.LoginAttemptRepository
	bcryptCost int
	now        func() time.Time
}

// NewAdminService builds the service.
func NewAdminService(cfg config.AuthConfig, users repository.UserRepository, attempts repository.LoginAttemptRepository) *AdminService {
	return &AdminService{
		users:      users,
		attempts:   attempts,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

// CreateAdmin creates an account holding the admin capability.
func (s *AdminService) CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	return createUser(ctx, s.users, s.bcryptCost, username, email, password, true)
}

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// Analytics summarizes login attempts: totals, the most recent attempts and
// one bucket per hour for the last day, newest first.
func (s *AdminService) Analytics(ctx context.Context) (*domain.Analytics, error) {
	total, successful, err := s.attempts.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	recent, err := s.attempts.Recent(ctx, recentAttemptsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}

	now := s.now().UTC()
	hourly := make([]domain.HourlyAttempts, 0, analyticsHours)
	for h := 0; h < analyticsHours; h++ {
		end := now.Add(-time.Duration(h) * time.Hour)
		start := end.Add(-time.Hour)
		ok, failed, err := s.attempts.CountBetween(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("hourly attempts: %w", err)
		}
		hourly = append(hourly, domain.HourlyAttempts{
			Hour:       fmt.Sprintf("%02d:00", start.Hour()),
			Successful: ok,
			Failed:     failed,
		})
	}

	return &domain.Analytics{
		TotalAttempts:      total,
		SuccessfulAttempts: successful,
		FailedAttempts:     total - successful,
		RecentAttempts:     recent,
		HourlyAttempts:     hourly,
	}, nil
}
