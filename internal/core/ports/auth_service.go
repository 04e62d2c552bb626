package ports

import (
	"context"
	"time"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Role      domain.Role
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Actor     *domain.Actor
}

// AuthService is the session guard: login, token authentication and
// account registration.
type AuthService interface {
	// Register creates an applicant account. It is the public self-service path.
	Register(ctx context.Context, input RegisterInput) (*domain.Actor, error)
	// RegisterStaff creates an admin or assessor account on behalf of an admin.
	RegisterStaff(ctx context.Context, session *domain.Session, input RegisterInput) (*domain.Actor, error)
	Login(ctx context.Context, role domain.Role, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
	Invalidate(ctx context.Context, session *domain.Session) error
}

// LoginThrottle counts failed logins per key and locks keys that exceed
// the configured budget.
type LoginThrottle interface {
	Locked(ctx context.Context, key string) (bool, error)
	Failure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
