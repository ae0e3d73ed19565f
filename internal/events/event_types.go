package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LoginAttemptPayload carries the request facts of a login try. UserID is
// nil when the identifier matched no account.
type LoginAttemptPayload struct {
	UserID    *int64 `json:"user_id,omitempty"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}
