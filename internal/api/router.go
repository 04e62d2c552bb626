package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ifl-de/intake-api/internal/api/handler"
	"github.com/ifl-de/intake-api/internal/api/middleware"
	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/pkg/metrics"
)

// jsonBodyLimit caps every non-upload request body.
const jsonBodyLimit = "64K"

// httpMetrics registers the request collectors once per process.
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: metrics.Namespace,
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	})
})

// Services are the core ports the HTTP layer drives.
type Services struct {
	Auth        ports.AuthService
	Submissions ports.SubmissionService
	Profiles    ports.ProfileService
}

// Options configure the transport.
type Options struct {
	AllowedOrigins  []string
	Cookie          handler.CookieConfig
	MaxRequestBytes int64
	MaxFileSize     int64
	// AuthRateLimit is the sustained per-IP request rate on login and
	// registration routes. Zero disables the limiter.
	AuthRateLimit float64
	Readiness     map[string]handler.PingFunc
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svcs Services, opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(httpMetrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	e.Use(echomiddleware.Secure())

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(svcs.Auth, opts.Cookie)
	documentHandler := handler.NewDocumentHandler(svcs.Submissions, opts.MaxFileSize)
	profileHandler := handler.NewProfileHandler(svcs.Profiles)

	jsonLimit := echomiddleware.BodyLimit(jsonBodyLimit)
	uploadLimit := echomiddleware.BodyLimit(fmt.Sprintf("%dB", opts.MaxRequestBytes))
	staffOnly := middleware.RequireRoles(domain.StaffRoles...)

	public := []echo.MiddlewareFunc{jsonLimit}
	if opts.AuthRateLimit > 0 {
		public = append(public, authLimiter(opts.AuthRateLimit))
	}

	api := e.Group("/api")

	// --- Public auth routes ---
	api.POST("/applicants/register", authHandler.Register, public...)
	api.POST("/applicants/login", authHandler.Login(domain.RoleApplicant), public...)
	api.POST("/admins/login", authHandler.Login(domain.RoleAdmin), public...)
	api.POST("/assessors/login", authHandler.Login(domain.RoleAssessor), public...)

	// --- Session-protected routes ---
	// Session is attached per route so unmatched paths still answer 404.
	session := middleware.Session(svcs.Auth, opts.Cookie.Name)
	secured := func(m ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		return append([]echo.MiddlewareFunc{session}, m...)
	}

	api.POST("/admins/staff", authHandler.RegisterStaff, secured(jsonLimit, middleware.RequireRoles(domain.RoleAdmin))...)
	api.POST("/auth/logout", authHandler.Logout, secured()...)
	api.GET("/auth/status", authHandler.Status, secured()...)

	api.POST("/documents", documentHandler.Submit, secured(uploadLimit, middleware.RequireRoles(domain.RoleApplicant))...)
	api.GET("/documents", documentHandler.List, secured()...)
	api.GET("/documents/review", documentHandler.ReviewQueue, secured(staffOnly)...)
	api.GET("/documents/:id/content", documentHandler.Download, secured()...)
	api.DELETE("/documents/:id", documentHandler.Delete, secured()...)
	api.PATCH("/documents/:id/review", documentHandler.Review, secured(jsonLimit, staffOnly)...)
	api.GET("/users/:userId/documents", documentHandler.ListForUser, secured()...)

	api.GET("/profile", profileHandler.Get, secured()...)
	api.GET("/profile/:id", profileHandler.Get, secured()...)
	api.PUT("/profile", profileHandler.Update, secured(jsonLimit)...)
	api.PUT("/profile/password", profileHandler.ChangePassword, secured(jsonLimit)...)

	// --- Probes and metrics (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(opts.Readiness).Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

// authLimiter throttles credential endpoints per client IP. It complements
// the per-account lockout of the auth service.
func authLimiter(perSecond float64) echo.MiddlewareFunc {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}
