package ports

import (
	"context"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// ProfileService reads and edits actor profiles.
type ProfileService interface {
	// GetProfile returns actorID's profile; an empty actorID means the caller.
	GetProfile(ctx context.Context, session *domain.Session, actorID string) (*domain.Actor, error)
	UpdateProfile(ctx context.Context, session *domain.Session, patch domain.ProfilePatch) (*domain.Actor, error)
	ChangePassword(ctx context.Context, session *domain.Session, current, next string) error
}
