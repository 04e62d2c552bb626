package ports

import (
	"context"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// ActorRepository is the credential store. Lookups are always scoped to a
// role namespace. Missing records are domain.ErrNotFound, unique-key
// collisions domain.ErrDuplicate, timeouts domain.ErrStoreUnavailable.
type ActorRepository interface {
	FindByIdentifier(ctx context.Context, role domain.Role, email string) (*domain.Actor, error)
	FindByID(ctx context.Context, role domain.Role, id string) (*domain.Actor, error)
	Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error)
	Update(ctx context.Context, role domain.Role, id string, patch domain.ProfilePatch) (*domain.Actor, error)
	SetPasswordHash(ctx context.Context, role domain.Role, id, hash string) error
}
