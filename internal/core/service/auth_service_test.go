package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

func newTestAuthService(t *testing.T, repo *stubActorRepo, throttle ports.LoginThrottle) *AuthService {
	t.Helper()
	tokens, err := NewTokenService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return newAuthService(repo, tokens, throttle, discardLogger, bcrypt.MinCost)
}

func applicantInput(email string) ports.RegisterInput {
	return ports.RegisterInput{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubActorRepo()
	svc := newTestAuthService(t, repo, nil)

	actor, err := svc.Register(context.Background(), applicantInput("  Ada@Example.com "))
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if actor.Role != domain.RoleApplicant {
		t.Fatalf("expected applicant role, got %s", actor.Role)
	}
	if actor.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", actor.Email)
	}
	if actor.PasswordHash == "correct-horse" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestAuthService_Register_IgnoresRequestedRole(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)

	in := applicantInput("mallory@example.com")
	in.Role = domain.RoleAdmin
	actor, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if actor.Role != domain.RoleApplicant {
		t.Fatalf("self registration must create an applicant, got %s", actor.Role)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)

	cases := map[string]ports.RegisterInput{
		"bad email":      {Email: "not-an-email", Password: "correct-horse", FirstName: "A", LastName: "B"},
		"display name":   {Email: "Ada <ada@example.com>", Password: "correct-horse", FirstName: "A", LastName: "B"},
		"short password": {Email: "ada@example.com", Password: "short", FirstName: "A", LastName: "B"},
		"missing name":   {Email: "ada@example.com", Password: "correct-horse", FirstName: " ", LastName: "B"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, domain.ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)

	if _, err := svc.Register(context.Background(), applicantInput("ada@example.com")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), applicantInput("ADA@example.com")); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAuthService_RegisterStaff(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)
	ctx := context.Background()

	in := applicantInput("assessor@example.com")
	in.Role = domain.RoleAssessor

	admin := &domain.Session{ActorID: "admin-1", Role: domain.RoleAdmin}
	assessor := &domain.Session{ActorID: "assessor-1", Role: domain.RoleAssessor}

	if _, err := svc.RegisterStaff(ctx, nil, in); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without session, got %v", err)
	}
	if _, err := svc.RegisterStaff(ctx, assessor, in); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for assessor, got %v", err)
	}

	applicant := in
	applicant.Role = domain.RoleApplicant
	if _, err := svc.RegisterStaff(ctx, admin, applicant); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for non-staff role, got %v", err)
	}

	actor, err := svc.RegisterStaff(ctx, admin, in)
	if err != nil {
		t.Fatalf("RegisterStaff: %v", err)
	}
	if actor.Role != domain.RoleAssessor {
		t.Fatalf("expected assessor, got %s", actor.Role)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubActorRepo()
	svc := newTestAuthService(t, repo, nil)
	ctx := context.Background()

	registered, err := svc.Register(ctx, applicantInput("ada@example.com"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, domain.RoleApplicant, "Ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token")
	}
	if res.Actor.ID != registered.ID {
		t.Fatalf("expected actor %s, got %s", registered.ID, res.Actor.ID)
	}

	session, err := svc.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if session.ActorID != registered.ID || session.Role != domain.RoleApplicant {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestAuthService_Login_UnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, applicantInput("ada@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPassword := svc.Login(ctx, domain.RoleApplicant, "ada@example.com", "wrong-password")
	_, unknownEmail := svc.Login(ctx, domain.RoleApplicant, "nobody@example.com", "correct-horse")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) || !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestAuthService_Login_RoleNamespaces(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, applicantInput("ada@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, domain.RoleAdmin, "ada@example.com", "correct-horse"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("applicant credentials must not log into the admin namespace, got %v", err)
	}
	if _, err := svc.Login(ctx, domain.Role("root"), "ada@example.com", "correct-horse"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown role, got %v", err)
	}
}

func TestAuthService_Login_Throttled(t *testing.T) {
	throttle := newStubThrottle(3)
	svc := newTestAuthService(t, newStubActorRepo(), throttle)
	ctx := context.Background()

	if _, err := svc.Register(ctx, applicantInput("ada@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, domain.RoleApplicant, "ada@example.com", "nope-nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.Login(ctx, domain.RoleApplicant, "ada@example.com", "correct-horse"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts once locked, got %v", err)
	}

	throttle.failures = map[string]int{"applicant:ada@example.com": 2}
	if _, err := svc.Login(ctx, domain.RoleApplicant, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("expected success below the limit, got %v", err)
	}
	if n := throttle.failures["applicant:ada@example.com"]; n != 0 {
		t.Fatalf("expected failures reset after success, got %d", n)
	}
}

func TestAuthService_Login_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	repo := newStubActorRepo()
	repo.err = domain.ErrStoreUnavailable
	svc := newTestAuthService(t, repo, nil)

	_, err := svc.Login(context.Background(), domain.RoleApplicant, "ada@example.com", "correct-horse")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	repo := newStubActorRepo()
	svc := newTestAuthService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthorized) || !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected unauthorized malformed token, got %v", err)
	}

	actor, err := svc.Register(ctx, applicantInput("ada@example.com"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, domain.RoleApplicant, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	repo.remove(actor.ID)
	if _, err := svc.Authenticate(ctx, res.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for deleted actor, got %v", err)
	}
}

func TestAuthService_Invalidate(t *testing.T) {
	svc := newTestAuthService(t, newStubActorRepo(), nil)

	if err := svc.Invalidate(context.Background(), nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Invalidate(context.Background(), &domain.Session{ActorID: "a", Role: domain.RoleApplicant}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
}

func TestAuthService_EnsureAdmin_Idempotent(t *testing.T) {
	repo := newStubActorRepo()
	svc := newTestAuthService(t, repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass"); err != nil {
			t.Fatalf("EnsureAdmin #%d: %v", i, err)
		}
	}
	if len(repo.actors) != 1 {
		t.Fatalf("expected exactly one admin, got %d actors", len(repo.actors))
	}
	if _, err := svc.Login(ctx, domain.RoleAdmin, "root@example.com", "bootstrap-pass"); err != nil {
		t.Fatalf("bootstrap admin cannot log in: %v", err)
	}
}
