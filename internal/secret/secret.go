// Package secret owns the HMAC signing secret: how it is generated, where it is
// persisted and how it is rotated while the service keeps running.
package secret

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// MinLength is the shortest secret the service will generate or accept.
const MinLength = 64

// Alphabet holds ASCII letters, digits and punctuation. Space is excluded so a
// secret always fits on a single KEY=VALUE line.
const Alphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	// ErrUninitialized is returned when no secret has ever been written.
	ErrUninitialized = errors.New("secret store not initialized")
	// ErrRotationIO marks a rotation whose new secret could not be persisted.
	ErrRotationIO = errors.New("secret rotation failed to persist")
)

// Secret is symmetric key material used only as an HMAC key.
type Secret string

// String keeps secrets out of logs and fmt output.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

// Bytes returns the raw key material.
func (s Secret) Bytes() []byte {
	return []byte(s)
}

// Keyring is the persisted state: the current secret and the one it replaced.
type Keyring struct {
	Current  Secret
	Previous Secret
}

// Candidates lists the non-empty secrets, current first.
func (k Keyring) Candidates() []Secret {
	out := make([]Secret, 0, 2)
	if k.Current != "" {
		out = append(out, k.Current)
	}
	if k.Previous != "" && k.Previous != k.Current {
		out = append(out, k.Previous)
	}
	return out
}

// Store is the durable holder of the signing secret.
//
// Read fails with ErrUninitialized until the first Write. Write makes the given
// secret current and the old current secret previous, atomically: readers see
// either the old keyring or the new one.
type Store interface {
	Read(ctx context.Context) (Keyring, error)
	Write(ctx context.Context, s Secret) error
}

// Current reads only the current secret from store.
func Current(ctx context.Context, store Store) (Secret, error) {
	keys, err := store.Read(ctx)
	if err != nil {
		return "", err
	}
	return keys.Current, nil
}

// Generate draws length characters uniformly from Alphabet using crypto/rand.
func Generate(length int) (Secret, error) {
	return GenerateFrom(Alphabet, length)
}

// GenerateFrom draws length characters uniformly from alphabet using crypto/rand.
func GenerateFrom(alphabet string, length int) (Secret, error) {
	if length < MinLength {
		return "", fmt.Errorf("secret length %d below minimum %d", length, MinLength)
	}
	if len(alphabet) < 2 {
		return "", errors.New("secret alphabet too small")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return Secret(b.String()), nil
}

func validate(s Secret) error {
	if s == "" {
		return errors.New("empty secret")
	}
	if strings.ContainsAny(string(s), " \t\r\n") {
		return errors.New("secret contains whitespace")
	}
	return nil
}
