package ports

import (
	"time"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// TokenService issues and verifies signed session tokens.
type TokenService interface {
	Issue(actorID string, role domain.Role) (token string, expiresAt time.Time, err error)
	Verify(token string) (*domain.Session, error)
}
