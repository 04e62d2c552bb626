package domain

import (
	"slices"
	"time"
)

// Session is the verified identity attached to a request.
type Session struct {
	ActorID   string    `json:"actor_id"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authorize checks that s exists and carries one of the accepted roles.
// A missing session is ErrUnauthorized, a wrong role ErrForbidden.
func Authorize(s *Session, accepted ...Role) error {
	if s == nil || s.ActorID == "" {
		return ErrUnauthorized
	}
	if len(accepted) > 0 && !slices.Contains(accepted, s.Role) {
		return ErrForbidden
	}
	return nil
}
