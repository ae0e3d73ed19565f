package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const subjectKey = "auth_subject"

// Subject is the authenticated identity behind a token.
type Subject interface {
	SubjectID() int64
	HasCapability(name string) bool
}

// SubjectLookup resolves token subjects. Implementations return
// ErrSubjectNotFound for unknown ids.
type SubjectLookup interface {
	LookupSubject(ctx context.Context, id int64) (Subject, error)
}

// Predicate decides whether a resolved subject may proceed.
type Predicate func(Subject) bool

// AnySubject admits every authenticated subject.
func AnySubject(Subject) bool { return true }

// RequireCapability admits subjects holding the named capability.
func RequireCapability(name string) Predicate {
	return func(s Subject) bool { return s.HasCapability(name) }
}

// Guard gates handlers behind token verification, subject lookup and a
// privilege predicate.
type Guard struct {
	verifier *Verifier
	subjects SubjectLookup
	allow    Predicate
}

// NewGuard constructs a guard. A nil predicate admits any subject.
func NewGuard(verifier *Verifier, subjects SubjectLookup, allow Predicate) *Guard {
	if allow == nil {
		allow = AnySubject
	}
	return &Guard{verifier: verifier, subjects: subjects, allow: allow}
}

// Authorize runs the full check for an Authorization header value.
func (g *Guard) Authorize(ctx context.Context, header string) (Subject, error) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, ErrMissingToken
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	subject, err := g.subjects.LookupSubject(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if !g.allow(subject) {
		return nil, ErrInsufficientPrivilege
	}
	return subject, nil
}

// Wrap returns a handler that calls next with the resolved subject only when
// authorization succeeds. next's result is returned unchanged.
func (g *Guard) Wrap(next func(c *fiber.Ctx, subject Subject) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, err := g.Authorize(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return HTTPError(err)
		}
		c.Locals(subjectKey, subject)
		return next(c, subject)
	}
}

// Handle is the middleware form of Wrap for route groups.
func (g *Guard) Handle(c *fiber.Ctx) error {
	return g.Wrap(func(c *fiber.Ctx, _ Subject) error { return c.Next() })(c)
}

// SubjectFromContext retrieves the subject stored by the guard.
func SubjectFromContext(c *fiber.Ctx) (Subject, bool) {
	subject, ok := c.Locals(subjectKey).(Subject)
	return subject, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
