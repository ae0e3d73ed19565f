package domain

import "time"

// CapabilityAdmin is granted to users with the admin flag.
const CapabilityAdmin = "admin"

// User is an account that can log in and receive tokens.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// SubjectID returns the id carried in token claims.
func (u *User) SubjectID() int64 {
	return u.ID
}

// HasCapability reports whether the user holds the named capability.
func (u *User) HasCapability(name string) bool {
	switch name {
	case CapabilityAdmin:
		return u.IsAdmin
	default:
		return false
	}
}
