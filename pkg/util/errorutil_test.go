package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewConflict("dup", nil)), "CONFLICT", http.StatusConflict},
		{"fiber error", fiber.NewError(http.StatusBadRequest, "invalid payload"), "BAD_REQUEST", http.StatusBadRequest},
		{"no rows", fmt.Errorf("get user: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"unknown error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestWrapHidesCauseFromMessage(t *testing.T) {
	cause := errors.New("signature is invalid")
	de := Wrap("INVALID_TOKEN", "token is invalid", http.StatusUnauthorized, cause)
	assert.Equal(t, "token is invalid", de.Message)
	assert.ErrorIs(t, de, cause)
}
