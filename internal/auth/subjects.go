package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/repository"
)

// UserSubjects resolves token subjects from the users table.
type UserSubjects struct {
	users repository.UserRepository
}

// NewUserSubjects adapts a UserRepository to SubjectLookup.
func NewUserSubjects(users repository.UserRepository) *UserSubjects {
	return &UserSubjects{users: users}
}

// LookupSubject implements SubjectLookup.
func (s *UserSubjects) LookupSubject(ctx context.Context, id int64) (Subject, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return user, nil
}
