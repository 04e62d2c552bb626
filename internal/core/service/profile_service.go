package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

const maxProfileFieldLength = 200

// ProfileService reads and edits the personal details of actors.
type ProfileService struct {
	repo ports.ActorRepository
	log  zerolog.Logger
	cost int
}

func NewProfileService(repo ports.ActorRepository, log zerolog.Logger) *ProfileService {
	return &ProfileService{repo: repo, log: log, cost: bcrypt.DefaultCost}
}

// GetProfile returns the caller's own profile, or for staff the profile of
// the applicant actorID.
func (s *ProfileService) GetProfile(ctx context.Context, session *domain.Session, actorID string) (*domain.Actor, error) {
	if err := domain.Authorize(session); err != nil {
		return nil, err
	}
	if actorID == "" || actorID == session.ActorID {
		return s.repo.FindByID(ctx, session.Role, session.ActorID)
	}
	if !session.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	return s.repo.FindByID(ctx, domain.RoleApplicant, actorID)
}

// UpdateProfile applies patch to the caller's own profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, session *domain.Session, patch domain.ProfilePatch) (*domain.Actor, error) {
	if err := domain.Authorize(session); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, domain.Invalid("no profile fields to update")
	}

	for name, field := range map[string]*string{
		"first_name": patch.FirstName,
		"last_name":  patch.LastName,
		"phone":      patch.Phone,
		"address":    patch.Address,
	} {
		if field == nil {
			continue
		}
		*field = strings.TrimSpace(*field)
		if len(*field) > maxProfileFieldLength {
			return nil, domain.Invalid("%s exceeds %d characters", name, maxProfileFieldLength)
		}
	}
	if (patch.FirstName != nil && *patch.FirstName == "") || (patch.LastName != nil && *patch.LastName == "") {
		return nil, domain.Invalid("first and last name cannot be blank")
	}

	actor, err := s.repo.Update(ctx, session.Role, session.ActorID, patch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", session.ActorID).Msg("profile updated")
	return actor, nil
}

// ChangePassword replaces the caller's password after checking the
// current one.
func (s *ProfileService) ChangePassword(ctx context.Context, session *domain.Session, current, next string) error {
	if err := domain.Authorize(session); err != nil {
		return err
	}
	if len(next) < minPasswordLength {
		return domain.Invalid("password must be at least %d characters", minPasswordLength)
	}

	actor, err := s.repo.FindByID(ctx, session.Role, session.ActorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(current)) != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, session.Role, session.ActorID, string(hash)); err != nil {
		return err
	}
	s.log.Info().Str("actor_id", session.ActorID).Msg("password changed")
	return nil
}
