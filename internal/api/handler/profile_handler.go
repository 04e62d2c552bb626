package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/core/ports"
)

// ProfileHandler serves the caller's own profile and, for staff, applicant
// profiles.
type ProfileHandler struct {
	service ports.ProfileService
}

func NewProfileHandler(service ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Get returns the profile named by :id, or the caller's own without it.
func (h *ProfileHandler) Get(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	actor, err := h.service.GetProfile(c.Request().Context(), session, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, actorResponse{User: actor})
}

// Update patches the caller's profile fields.
func (h *ProfileHandler) Update(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	actor, err := h.service.UpdateProfile(c.Request().Context(), session, req.toPatch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, actorResponse{User: actor})
}

// ChangePassword replaces the caller's password after checking the
// current one.
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(c.Request().Context(), session, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
