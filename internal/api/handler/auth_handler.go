package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

// CookieConfig controls the session cookie set on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService ports.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

// Register creates a new applicant account.
//
// @Summary      Register an applicant
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Applicant details"
// @Success      201   {object}  actorResponse
// @Failure      409   {object}  map[string]any
// @Failure      422   {object}  map[string]any
// @Router       /api/applicants/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	actor, err := h.authService.Register(c.Request().Context(), req.toInput(domain.RoleApplicant))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, actorResponse{User: actor})
}

// RegisterStaff creates an admin or assessor account. Admin only.
//
// @Summary      Register a staff member
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerStaffRequest  true  "Staff details"
// @Success      201   {object}  actorResponse
// @Failure      403   {object}  map[string]any
// @Router       /api/admins/staff [post]
func (h *AuthHandler) RegisterStaff(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req registerStaffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	actor, err := h.authService.RegisterStaff(c.Request().Context(), session, req.toInput(domain.Role(req.Role)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, actorResponse{User: actor})
}

// Login returns the login handler for one role namespace. On success the
// token is returned in the body and set as an HttpOnly cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  map[string]any
// @Failure      429   {object}  map[string]any
// @Router       /api/{role}s/login [post]
func (h *AuthHandler) Login(role domain.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		if err := c.Validate(&req); err != nil {
			return err
		}

		result, err := h.authService.Login(c.Request().Context(), role, req.Email, req.Password)
		if err != nil {
			return err
		}

		c.SetCookie(h.sessionCookie(result.Token, result.ExpiresAt))
		return c.JSON(http.StatusOK, loginResponse{
			Token:     result.Token,
			ExpiresAt: result.ExpiresAt,
			User:      result.Actor,
		})
	}
}

// Logout ends the session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := h.authService.Invalidate(c.Request().Context(), session); err != nil {
		return err
	}

	cookie := h.sessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Status reports the verified session of the caller.
func (h *AuthHandler) Status(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Authenticated: true,
		ActorID:       session.ActorID,
		Role:          session.Role,
		ExpiresAt:     session.ExpiresAt,
	})
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (r registerRequest) toInput(role domain.Role) ports.RegisterInput {
	return ports.RegisterInput{
		Role:      role,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Address:   r.Address,
	}
}
