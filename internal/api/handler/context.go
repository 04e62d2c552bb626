package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/api/middleware"
	"github.com/ifl-de/intake-api/internal/core/domain"
)

// sessionFrom returns the session attached by the Session middleware.
// A route registered without it fails closed.
func sessionFrom(c echo.Context) (*domain.Session, error) {
	s := middleware.SessionFrom(c)
	if err := domain.Authorize(s); err != nil {
		return nil, err
	}
	return s, nil
}
