package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/secret"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Claims describes the JWT payload: {"user_id": <int>, "exp": <unix>}.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer signs tokens with whatever secret is current at issuance time.
type Issuer struct {
	store secret.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewIssuer builds an issuer. A non-positive ttl falls back to DefaultTokenTTL.
func NewIssuer(store secret.Store, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{store: store, ttl: ttl, now: time.Now}
}

// Issue reads the current secret from the store and signs a token for userID.
func (i *Issuer) Issue(ctx context.Context, userID int64) (string, time.Time, error) {
	key, err := secret.Current(ctx, i.store)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read signing secret: %w", err)
	}

	expiresAt := jwt.NewNumericDate(i.now().Add(i.ttl))
	claims := &Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expiresAt},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key.Bytes())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Verifier checks tokens against the secret store.
//
// Verification first tries the current secret. A signature mismatch triggers
// one reload of the keyring from the store and a single retry against it, so
// a token signed just before a rotation is still accepted. The keyring keeps
// only one prior secret: a token whose secret has been rotated out twice is
// rejected even if it has not expired.
type Verifier struct {
	store   secret.Store
	metrics *observability.Metrics
	now     func() time.Time
}

// NewVerifier builds a verifier.
func NewVerifier(store secret.Store, metrics *observability.Metrics) *Verifier {
	return &Verifier{store: store, metrics: metrics, now: time.Now}
}

// Verify returns the token's claims or one of ErrInvalidToken, ErrTokenExpired
// or a store error.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := v.verify(ctx, tokenStr)
	switch {
	case err == nil:
		v.metrics.RecordVerification("valid")
	case errors.Is(err, ErrTokenExpired):
		v.metrics.RecordVerification("expired")
	case errors.Is(err, ErrInvalidToken):
		v.metrics.RecordVerification("invalid")
	default:
		v.metrics.RecordVerification("error")
	}
	return claims, err
}

func (v *Verifier) verify(ctx context.Context, tokenStr string) (*Claims, error) {
	// Expiry is decided before any signature work: an expired token is
	// expired no matter which secret signed it.
	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, unverified); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if unverified.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	if !v.now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	current, err := secret.Current(ctx, v.store)
	if err != nil {
		return nil, fmt.Errorf("read signing secret: %w", err)
	}
	claims, err := v.parse(tokenStr, current)
	if err == nil || !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return claims, classify(err)
	}

	// Signature mismatch: the secret may have rotated since issuance or since
	// the read above. Reload and retry once.
	keys, err := v.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload signing secret: %w", err)
	}
	for _, key := range keys.Candidates() {
		claims, err = v.parse(tokenStr, key)
		if err == nil || !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return claims, classify(err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
}

func (v *Verifier) parse(tokenStr string, key secret.Secret) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return key.Bytes(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
