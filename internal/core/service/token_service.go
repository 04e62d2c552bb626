package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

const (
	defaultTokenTTL = 12 * time.Hour
	tokenIssuer     = "intake-api"
)

var errEmptySigningKey = errors.New("token service: empty signing key")

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens.
//
// The signing key is fixed for the lifetime of the process. Restarting with
// a different key invalidates every token issued under the old one; there
// is no grace period for rotated keys.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService returns a TokenService signing with secret. A zero ttl
// falls back to 12 hours.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errEmptySigningKey
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	s := &TokenService{key: []byte(secret), ttl: ttl, now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// TTL returns the validity window of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

func (s *TokenService) Issue(actorID string, role domain.Role) (string, time.Time, error) {
	now := s.now()
	// NumericDate truncates to whole seconds; report the expiry the token
	// actually carries.
	exp := jwt.NewNumericDate(now.Add(s.ttl))
	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Verify checks token and returns the session it asserts. Expiry is judged
// before the signature, so an expired token is ErrTokenExpired whatever its
// signature.
func (s *TokenService) Verify(token string) (*domain.Session, error) {
	var unverified sessionClaims
	if _, _, err := s.parser.ParseUnverified(token, &unverified); err != nil {
		return nil, domain.ErrTokenMalformed
	}
	if unverified.ExpiresAt == nil {
		return nil, domain.ErrTokenMalformed
	}
	if !s.now().Before(unverified.ExpiresAt.Time) {
		return nil, domain.ErrTokenExpired
	}

	var claims sessionClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, domain.ErrTokenMalformed
	default:
		return nil, domain.ErrTokenSignatureInvalid
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return nil, domain.ErrTokenMalformed
	}

	session := &domain.Session{
		ActorID:   claims.Subject,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}
