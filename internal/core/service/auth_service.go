package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/pkg/metrics"
)

const minPasswordLength = 8

// AuthService implements registration, login and token authentication.
type AuthService struct {
	repo     ports.ActorRepository
	tokens   ports.TokenService
	throttle ports.LoginThrottle
	log      zerolog.Logger
	cost     int
	// dummyHash is compared against when the identifier is unknown so both
	// login failure paths cost one bcrypt comparison.
	dummyHash []byte
	now       func() time.Time
}

func NewAuthService(repo ports.ActorRepository, tokens ports.TokenService, throttle ports.LoginThrottle, log zerolog.Logger) *AuthService {
	return newAuthService(repo, tokens, throttle, log, bcrypt.DefaultCost)
}

func newAuthService(repo ports.ActorRepository, tokens ports.TokenService, throttle ports.LoginThrottle, log zerolog.Logger, cost int) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("intake-dummy-password"), cost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return &AuthService{
		repo:      repo,
		tokens:    tokens,
		throttle:  throttle,
		log:       log,
		cost:      cost,
		dummyHash: dummy,
		now:       time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Actor, error) {
	input.Role = domain.RoleApplicant
	return s.register(ctx, input)
}

// RegisterStaff is admin-only.
func (s *AuthService) RegisterStaff(ctx context.Context, session *domain.Session, input ports.RegisterInput) (*domain.Actor, error) {
	if err := domain.Authorize(session, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !input.Role.IsStaff() {
		return nil, domain.Invalid("role must be admin or assessor")
	}
	actor, err := s.register(ctx, input)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", actor.ID).Str("role", string(actor.Role)).Str("created_by", session.ActorID).Msg("staff account created")
	return actor, nil
}

func (s *AuthService) register(ctx context.Context, input ports.RegisterInput) (*domain.Actor, error) {
	email := normalizeEmail(input.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, domain.Invalid("email must be a valid address")
	}
	if len(input.Password) < minPasswordLength {
		return nil, domain.Invalid("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, domain.Invalid("first and last name are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Actor{
		Role:         input.Role,
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		Address:      strings.TrimSpace(input.Address),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Login authenticates email/password within the role's namespace. Unknown
// identifiers and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, role domain.Role, email, password string) (*ports.LoginResult, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidCredentials
	}
	email = normalizeEmail(email)
	key := throttleKey(role, email)

	if s.throttle != nil {
		locked, err := s.throttle.Locked(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("role", string(role)).Msg("login throttle check failed, continuing")
		} else if locked {
			metrics.LoginAttemptsTotal.WithLabelValues(string(role), "locked").Inc()
			return nil, domain.ErrTooManyAttempts
		}
	}

	actor, err := s.repo.FindByIdentifier(ctx, role, email)
	hash := s.dummyHash
	switch {
	case err == nil:
		hash = []byte(actor.PasswordHash)
	case errors.Is(err, domain.ErrNotFound):
		actor = nil
	default:
		return nil, fmt.Errorf("login: %w", err)
	}

	matched := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	if !matched || actor == nil || password == "" {
		s.recordFailure(ctx, role, key)
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(actor.ID, actor.Role)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("actor_id", actor.ID).Msg("failed to reset login throttle")
		}
	}
	metrics.LoginAttemptsTotal.WithLabelValues(string(role), "success").Inc()
	s.log.Info().Str("actor_id", actor.ID).Str("role", string(role)).Msg("login succeeded")

	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt, Actor: actor}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, role domain.Role, key string) {
	metrics.LoginAttemptsTotal.WithLabelValues(string(role), "invalid").Inc()
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Failure(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("role", string(role)).Msg("failed to record login failure")
	}
}

// Authenticate verifies token and confirms its actor still exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	if _, err := s.repo.FindByID(ctx, session.Role, session.ActorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: actor no longer exists", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return session, nil
}

// Invalidate ends a session. Tokens are stateless, so this only records
// the logout; the transport discards the stored credential. A token copied
// elsewhere stays valid until it expires.
func (s *AuthService) Invalidate(_ context.Context, session *domain.Session) error {
	if err := domain.Authorize(session); err != nil {
		return err
	}
	s.log.Info().Str("actor_id", session.ActorID).Str("role", string(session.Role)).Msg("logout")
	return nil
}

// EnsureAdmin creates the bootstrap admin account unless it already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.repo.FindByIdentifier(ctx, domain.RoleAdmin, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	actor, err := s.register(ctx, ports.RegisterInput{
		Role:      domain.RoleAdmin,
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return err
	}
	if actor != nil {
		s.log.Info().Str("actor_id", actor.ID).Msg("bootstrap admin created")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func throttleKey(role domain.Role, email string) string {
	return string(role) + ":" + email
}
