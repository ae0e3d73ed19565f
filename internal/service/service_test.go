package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/secret"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]*domain.User{}}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *memUsers) List(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

type authFixture struct {
	svc      *AuthService
	users    *memUsers
	verifier *auth.Verifier
	events   []events.Event
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := secret.NewFileStore(filepath.Join(t.TempDir(), "secret.env"))
	key, err := secret.Generate(secret.MinLength)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), key))

	f := &authFixture{users: newMemUsers(), verifier: auth.NewVerifier(store, nil)}
	dispatcher := events.NewInMemoryDispatcher(zaptest.NewLogger(t))
	collect := func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	}
	dispatcher.Subscribe(events.EventLoginSucceeded, collect)
	dispatcher.Subscribe(events.EventLoginFailed, collect)

	f.svc = NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		UserRepo:   f.users,
		Issuer:     auth.NewIssuer(store, time.Hour),
		Dispatcher: dispatcher,
		Logger:     zaptest.NewLogger(t),
	})
	return f
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, token, exp, err := f.svc.Register(ctx, "alice", "Alice@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	claims, err := f.verifier.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterRejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, _, _, err := f.svc.Register(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name                      string
		username, email, password string
		code                      string
	}{
		{"duplicate username", "alice", "other@example.com", "correct-horse", "CONFLICT"},
		{"duplicate email", "bob", "ALICE@example.com", "correct-horse", "CONFLICT"},
		{"missing fields", "", "bob@example.com", "correct-horse", "VALIDATION_FAILED"},
		{"bad email", "bob", "bob.example.com", "correct-horse", "VALIDATION_FAILED"},
		{"short password", "bob", "bob@example.com", "short", "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := f.svc.Register(ctx, tc.username, tc.email, tc.password)
			assert.Equal(t, tc.code, domainCode(t, err))
		})
	}
}

func TestLoginRecordsAttempts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered, _, _, err := f.svc.Register(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	in := LoginInput{Identifier: "alice", Password: "correct-horse", IPAddress: "8.8.8.8", UserAgent: "test"}
	user, token, _, err := f.svc.Login(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotNil(t, user.LastLogin)
	_, err = f.verifier.Verify(ctx, token)
	require.NoError(t, err)

	byEmail := in
	byEmail.Identifier = "ALICE@example.com"
	_, _, _, err = f.svc.Login(ctx, byEmail)
	require.NoError(t, err)

	wrong := in
	wrong.Password = "incorrect-horse"
	_, _, _, err = f.svc.Login(ctx, wrong)
	assert.Equal(t, "INVALID_CREDENTIALS", domainCode(t, err))

	unknown := in
	unknown.Identifier = "mallory"
	_, _, _, err = f.svc.Login(ctx, unknown)
	assert.Equal(t, "INVALID_CREDENTIALS", domainCode(t, err))

	require.Len(t, f.events, 4)
	assert.Equal(t, events.EventLoginSucceeded, f.events[0].Type)
	assert.Equal(t, events.EventLoginSucceeded, f.events[1].Type)
	assert.Equal(t, events.EventLoginFailed, f.events[2].Type)
	assert.Equal(t, events.EventLoginFailed, f.events[3].Type)

	payload := f.events[2].Payload.(events.LoginAttemptPayload)
	require.NotNil(t, payload.UserID)
	assert.Equal(t, registered.ID, *payload.UserID)
	assert.Equal(t, "8.8.8.8", payload.IPAddress)
	assert.Nil(t, f.events[3].Payload.(events.LoginAttemptPayload).UserID)
}

func TestLoginWithUninitializedStore(t *testing.T) {
	users := newMemUsers()
	store := secret.NewFileStore(filepath.Join(t.TempDir(), "secret.env"))
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		UserRepo: users,
		Issuer:   auth.NewIssuer(store, time.Hour),
	})
	_, err := createUser(context.Background(), users, bcrypt.MinCost, "alice", "alice@example.com", "correct-horse", false)
	require.NoError(t, err)

	_, _, _, err = svc.Login(context.Background(), LoginInput{Identifier: "alice", Password: "correct-horse"})
	require.ErrorIs(t, err, secret.ErrUninitialized)
	assert.Equal(t, "SIGNING_UNAVAILABLE", domainCode(t, auth.HTTPError(err)))
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, _, _, err := f.svc.Register(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, user.ID, "wrong-horse", "battery-staple")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	err = f.svc.ChangePassword(ctx, user.ID, "correct-horse", "short")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "correct-horse", "battery-staple"))
	_, _, _, err = f.svc.Login(ctx, LoginInput{Identifier: "alice", Password: "battery-staple"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, 999, "x", "battery-staple")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}
