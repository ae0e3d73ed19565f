package auth

import "github.com/spec-kit/auth-service/internal/domain"

// Guards holds the two gates used by the router.
type Guards struct {
	// Authenticated admits any user with a valid token.
	Authenticated *Guard
	// Admin additionally requires the admin capability.
	Admin *Guard
}

// NewGuards instantiates the plain and admin guards over one verifier.
func NewGuards(verifier *Verifier, subjects SubjectLookup) Guards {
	return Guards{
		Authenticated: NewGuard(verifier, subjects, AnySubject),
		Admin:         NewGuard(verifier, subjects, RequireCapability(domain.CapabilityAdmin)),
	}
}
