package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/secret"
)

func newStore(t *testing.T) *secret.FileStore {
	t.Helper()
	store := secret.NewFileStore(filepath.Join(t.TempDir(), "secret.env"))
	rotate(t, store)
	return store
}

func rotate(t *testing.T, store secret.Store) secret.Secret {
	t.Helper()
	s, err := secret.Generate(secret.MinLength)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), s))
	return s
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	issuer := NewIssuer(store, 0)
	verifier := NewVerifier(store, observability.NewMetrics())

	for _, id := range []int64{1, 42, 9_000_000_001} {
		token, exp, err := issuer.Issue(ctx, id)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), exp, 2*time.Second)

		claims, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, id, claims.UserID)
	}
}

func TestTokenWireFormat(t *testing.T) {
	store := newStore(t)
	token, exp, err := NewIssuer(store, time.Hour).Issue(context.Background(), 7)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"HS256","typ":"JWT"}`, string(header))

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Len(t, body, 2)
	assert.EqualValues(t, 7, body["user_id"])
	assert.EqualValues(t, exp.Unix(), body["exp"])
}

func TestVerifyExpiredRegardlessOfSecret(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	issuer := NewIssuer(store, 0)
	issuer.now = func() time.Time { return time.Now().Add(-DefaultTokenTTL - time.Minute) }
	verifier := NewVerifier(store, nil)

	token, _, err := issuer.Issue(ctx, 1)
	require.NoError(t, err)

	_, err = verifier.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)

	rotate(t, store)
	rotate(t, store)
	_, err = verifier.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	token, _, err := NewIssuer(store, 0).Issue(ctx, 1)
	require.NoError(t, err)

	verifier := NewVerifier(store, nil)
	verifier.now = func() time.Time { return time.Now().Add(DefaultTokenTTL + time.Second) }
	_, err = verifier.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifySurvivesOneRotation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	issuer := NewIssuer(store, 0)
	verifier := NewVerifier(store, nil)

	token, _, err := issuer.Issue(ctx, 5)
	require.NoError(t, err)

	rotate(t, store)

	claims, err := verifier.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), claims.UserID)
}

func TestVerifyRejectsAfterTwoRotations(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	issuer := NewIssuer(store, 0)
	verifier := NewVerifier(store, nil)

	token, _, err := issuer.Issue(ctx, 5)
	require.NoError(t, err)

	rotate(t, store)
	rotate(t, store)

	_, err = verifier.Verify(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// staleStore serves an outdated keyring on the first Read, as if a rotation
// committed right after the verifier looked.
type staleStore struct {
	secret.Store
	mu    sync.Mutex
	stale *secret.Keyring
	reads int
}

func (s *staleStore) Read(ctx context.Context) (secret.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.stale != nil {
		k := *s.stale
		s.stale = nil
		return k, nil
	}
	return s.Store.Read(ctx)
}

func TestVerifyReloadsAfterSignatureMismatch(t *testing.T) {
	ctx := context.Background()
	inner := newStore(t)
	before, err := inner.Read(ctx)
	require.NoError(t, err)

	rotate(t, inner)
	token, _, err := NewIssuer(inner, 0).Issue(ctx, 11)
	require.NoError(t, err)

	store := &staleStore{Store: inner, stale: &secret.Keyring{Current: before.Current}}
	claims, err := NewVerifier(store, nil).Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(11), claims.UserID)
	assert.Equal(t, 2, store.reads)
}

func TestVerifyRejectsForgedTokens(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	verifier := NewVerifier(store, nil)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	guessed := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	forged, err := guessed.SignedString([]byte("guessed-secret"))
	require.NoError(t, err)

	current, err := secret.Current(ctx, store)
	require.NoError(t, err)
	otherAlg := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	hs512, err := otherAlg.SignedString(current.Bytes())
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1})
	withoutExp, err := noExp.SignedString(current.Bytes())
	require.NoError(t, err)

	valid, _, err := NewIssuer(store, 0).Issue(ctx, 1)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"user_id":2,"exp":` + jsonNumber(exp) + `}`))
	tampered := parts[0] + "." + payload + "." + parts[2]

	for name, token := range map[string]string{
		"guessed secret": forged,
		"hs512":          hs512,
		"alg none":       unsigned,
		"missing exp":    withoutExp,
		"tampered":       tampered,
		"malformed":      "not-a-token",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func jsonNumber(d *jwt.NumericDate) string {
	b, _ := json.Marshal(d)
	return string(b)
}

func TestIssueFailsOnUninitializedStore(t *testing.T) {
	store := secret.NewFileStore(filepath.Join(t.TempDir(), "secret.env"))
	_, _, err := NewIssuer(store, 0).Issue(context.Background(), 1)
	require.ErrorIs(t, err, secret.ErrUninitialized)
}

func TestConcurrentVerifyDuringRotation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	issuer := NewIssuer(store, 0)
	verifier := NewVerifier(store, nil)

	token, _, err := issuer.Issue(ctx, 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	failures := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := verifier.Verify(ctx, token); err != nil {
					failures <- err
					return
				}
			}
		}()
	}
	// One rotation while verifications run stays inside the grace window.
	rotate(t, store)
	wg.Wait()
	close(failures)

	for err := range failures {
		t.Fatalf("verification failed across a single rotation: %v", err)
	}
}
