package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type fakeCreator struct {
	err   error
	calls int
}

func (f *fakeCreator) CreateAdmin(_ context.Context, username, email, _ string) (*domain.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: 1, Username: username, Email: email, IsAdmin: true}, nil
}

func noEnv(string) string { return "" }

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--username", "root", "--email=root@example.com", "--password", "root-password"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, options{username: "root", email: "root@example.com", password: "root-password"}, opts)

	opts, err = parseFlags([]string{"--username", "root", "--email", "root@example.com"}, func(key string) string {
		if key == passwordEnv {
			return "from-env-password"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env-password", opts.password)

	_, err = parseFlags([]string{"--username", "root"}, noEnv)
	assert.Error(t, err)
	_, err = parseFlags([]string{"--bogus"}, noEnv)
	assert.Error(t, err)
}

func TestCreateAdmin(t *testing.T) {
	opts := options{username: "root", email: "root@example.com", password: "root-password"}
	ctx := context.Background()

	creator := &fakeCreator{}
	require.NoError(t, createAdmin(ctx, creator, opts, zaptest.NewLogger(t)))
	assert.Equal(t, 1, creator.calls)

	existing := &fakeCreator{err: apperrors.NewConflict("username already exists", nil)}
	require.NoError(t, createAdmin(ctx, existing, opts, zaptest.NewLogger(t)))

	weak := &fakeCreator{err: apperrors.NewValidationError("password too short", nil)}
	assert.Error(t, createAdmin(ctx, weak, opts, zaptest.NewLogger(t)))

	down := &fakeCreator{err: errors.New("connection refused")}
	assert.Error(t, createAdmin(ctx, down, opts, zaptest.NewLogger(t)))
}
