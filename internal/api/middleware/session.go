package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

const sessionKey = "session"

// Authenticator resolves a session token to a verified session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// Session verifies the request's session token and stores the resulting
// session in the echo context. The token is read from the Authorization
// bearer header, falling back to the cookieName cookie.
func Session(auth Authenticator, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := tokenFrom(c, cookieName)
			if err != nil {
				return err
			}

			session, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			SetSession(c, session)
			return next(c)
		}
	}
}

func tokenFrom(c echo.Context, cookieName string) (string, error) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", fmt.Errorf("%w: invalid authorization header", domain.ErrUnauthorized)
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", fmt.Errorf("%w: missing credentials", domain.ErrUnauthorized)
}

// SetSession attaches session to the request context.
func SetSession(c echo.Context, session *domain.Session) {
	c.Set(sessionKey, session)
}

// SessionFrom returns the session attached by Session, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(sessionKey).(*domain.Session)
	return s
}
