package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/api/middleware"
	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn      func(ctx context.Context, input ports.RegisterInput) (*domain.Actor, error)
	registerStaffFn func(ctx context.Context, session *domain.Session, input ports.RegisterInput) (*domain.Actor, error)
	loginFn         func(ctx context.Context, role domain.Role, email, password string) (*ports.LoginResult, error)
	invalidated     []*domain.Session
}

func (s *stubAuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Actor, error) {
	return s.registerFn(ctx, input)
}

func (s *stubAuthService) RegisterStaff(ctx context.Context, session *domain.Session, input ports.RegisterInput) (*domain.Actor, error) {
	return s.registerStaffFn(ctx, session, input)
}

func (s *stubAuthService) Login(ctx context.Context, role domain.Role, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, role, email, password)
}

func (s *stubAuthService) Authenticate(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrUnauthorized
}

func (s *stubAuthService) Invalidate(_ context.Context, session *domain.Session) error {
	s.invalidated = append(s.invalidated, session)
	return nil
}

type stubSubmissionService struct {
	submitFn  func(ctx context.Context, session *domain.Session, files []domain.FileUpload) ([]*domain.Document, error)
	fetchFn   func(ctx context.Context, session *domain.Session, target string) ([]*domain.Document, error)
	reviewQFn func(ctx context.Context, session *domain.Session, status domain.ReviewStatus) ([]*domain.Document, error)
	openFn    func(ctx context.Context, session *domain.Session, id string) (*domain.Document, io.ReadCloser, error)
	deleteFn  func(ctx context.Context, session *domain.Session, id string) error
	updateFn  func(ctx context.Context, session *domain.Session, id string, status domain.ReviewStatus, note string) (*domain.Document, error)
}

func (s *stubSubmissionService) Submit(ctx context.Context, session *domain.Session, files []domain.FileUpload) ([]*domain.Document, error) {
	return s.submitFn(ctx, session, files)
}

func (s *stubSubmissionService) Fetch(ctx context.Context, session *domain.Session, target string) ([]*domain.Document, error) {
	return s.fetchFn(ctx, session, target)
}

func (s *stubSubmissionService) ListForReview(ctx context.Context, session *domain.Session, status domain.ReviewStatus) ([]*domain.Document, error) {
	return s.reviewQFn(ctx, session, status)
}

func (s *stubSubmissionService) Open(ctx context.Context, session *domain.Session, id string) (*domain.Document, io.ReadCloser, error) {
	return s.openFn(ctx, session, id)
}

func (s *stubSubmissionService) Delete(ctx context.Context, session *domain.Session, id string) error {
	return s.deleteFn(ctx, session, id)
}

func (s *stubSubmissionService) UpdateReviewStatus(ctx context.Context, session *domain.Session, id string, status domain.ReviewStatus, note string) (*domain.Document, error) {
	return s.updateFn(ctx, session, id, status, note)
}

type stubProfileService struct {
	getFn    func(ctx context.Context, session *domain.Session, actorID string) (*domain.Actor, error)
	updateFn func(ctx context.Context, session *domain.Session, patch domain.ProfilePatch) (*domain.Actor, error)
	changeFn func(ctx context.Context, session *domain.Session, current, next string) error
}

func (s *stubProfileService) GetProfile(ctx context.Context, session *domain.Session, actorID string) (*domain.Actor, error) {
	return s.getFn(ctx, session, actorID)
}

func (s *stubProfileService) UpdateProfile(ctx context.Context, session *domain.Session, patch domain.ProfilePatch) (*domain.Actor, error) {
	return s.updateFn(ctx, session, patch)
}

func (s *stubProfileService) ChangePassword(ctx context.Context, session *domain.Session, current, next string) error {
	return s.changeFn(ctx, session, current, next)
}

var (
	applicantSession = &domain.Session{ActorID: "a1", Role: domain.RoleApplicant}
	adminSession     = &domain.Session{ActorID: "s1", Role: domain.RoleAdmin}
)

// newContext builds an echo context for a JSON request. A nil session
// leaves the request unauthenticated.
func newContext(t *testing.T, method, target, body string, session *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if session != nil {
		middleware.SetSession(c, session)
	}
	return c, rec
}
