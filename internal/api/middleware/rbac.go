package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// RequireRoles rejects requests whose session role is outside roles. It
// must run after Session.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := domain.Authorize(SessionFrom(c), roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
