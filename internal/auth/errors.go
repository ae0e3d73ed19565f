package auth

import (
	"errors"
	"net/http"

	"github.com/spec-kit/auth-service/internal/secret"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Client-facing rejections. Each maps to exactly one HTTP error code.
var (
	ErrMissingToken          = errors.New("missing bearer token")
	ErrInvalidToken          = errors.New("token is invalid")
	ErrTokenExpired          = errors.New("token has expired")
	ErrSubjectNotFound       = errors.New("subject not found")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
)

// HTTPError maps a guard or verifier error onto the API error envelope.
// Unrecognised errors are returned unchanged.
func HTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingToken):
		return apperrors.Wrap("MISSING_TOKEN", "token is missing", http.StatusUnauthorized, err)
	case errors.Is(err, ErrTokenExpired):
		return apperrors.Wrap("TOKEN_EXPIRED", "token has expired", http.StatusUnauthorized, err)
	case errors.Is(err, ErrInvalidToken):
		return apperrors.Wrap("INVALID_TOKEN", "token is invalid", http.StatusUnauthorized, err)
	case errors.Is(err, ErrSubjectNotFound):
		return apperrors.Wrap("SUBJECT_NOT_FOUND", "user not found", http.StatusUnauthorized, err)
	case errors.Is(err, ErrInsufficientPrivilege):
		return apperrors.Wrap("INSUFFICIENT_PRIVILEGE", "admin privileges required", http.StatusForbidden, err)
	case errors.Is(err, secret.ErrUninitialized):
		return apperrors.Wrap("SIGNING_UNAVAILABLE", "signing key unavailable", http.StatusServiceUnavailable, err)
	default:
		return err
	}
}
