package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/database"
	"github.com/adampresley/imagecaptioning/pkg/identity"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/rfberaldo/sqlz"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *sqlz.DB {
	t.Helper()

	db, err := database.Connect("file:" + filepath.Join(t.TempDir(), "identity.db"))

	if err != nil {
		t.Fatalf("Expected database to open, got %v", err)
	}

	if err = database.Migrate(db); err != nil {
		t.Fatalf("Expected migrations to run, got %v", err)
	}

	return db
}

func newTestIdentityService(t *testing.T) (IdentityService, AccountService, AuthSessionService) {
	t.Helper()

	db := newTestDB(t)
	accounts := NewAccountService(AccountServiceConfig{DB: db})
	authSessions := NewAuthSessionService(AuthSessionServiceConfig{DB: db})

	service := NewIdentityService(IdentityServiceConfig{
		AccountService:     accounts,
		AuthSessionService: authSessions,
		BcryptCost:         bcrypt.MinCost,
		MaxFailedAttempts:  3,
	})

	return service, accounts, authSessions
}

func expectCode(t *testing.T, err error, code identity.Code) {
	t.Helper()

	if got := identity.CodeOf(err); got != code {
		t.Errorf("Expected code %s, got %s (%v)", code, got, err)
	}
}

func TestCreateAccountAndSignIn(t *testing.T) {
	service, _, _ := newTestIdentityService(t)
	ctx := context.Background()

	created, err := service.CreateAccount(ctx, "  Adam@Example.com ", "secret1")

	if err != nil {
		t.Fatalf("Expected account to be created, got %v", err)
	}

	if !created.IsAuthenticated() || created.Email != "adam@example.com" {
		t.Errorf("Expected an authenticated session for adam@example.com, got %+v", created)
	}

	signedIn, err := service.SignInWithPassword(ctx, "adam@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected sign in to succeed, got %v", err)
	}

	if signedIn.UserID != created.UserID || signedIn.Token == created.Token {
		t.Errorf("Expected a new session for the same user, got %+v", signedIn)
	}

	resolved, err := service.Resolve(ctx, signedIn.Token)

	if err != nil {
		t.Fatalf("Expected session to resolve, got %v", err)
	}

	if resolved.Email != "adam@example.com" || resolved.Provider != models.ProviderPassword {
		t.Errorf("Expected resolved session to carry user fields, got %+v", resolved)
	}
}

func TestCreateAccountErrors(t *testing.T) {
	service, _, _ := newTestIdentityService(t)
	ctx := context.Background()

	if _, err := service.CreateAccount(ctx, "taken@example.com", "secret1"); err != nil {
		t.Fatalf("Expected setup account to be created, got %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		expected identity.Code
	}{
		{name: "invalid email", email: "not-an-email", password: "secret1", expected: identity.CodeInvalidEmail},
		{name: "missing domain dot", email: "someone@localhost", password: "secret1", expected: identity.CodeInvalidEmail},
		{name: "weak password", email: "new@example.com", password: "123", expected: identity.CodeWeakPassword},
		{name: "duplicate", email: "TAKEN@example.com", password: "secret1", expected: identity.CodeEmailAlreadyInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateAccount(ctx, tt.email, tt.password)
			expectCode(t, err, tt.expected)
		})
	}
}

func TestSignInWithPasswordErrors(t *testing.T) {
	service, accounts, _ := newTestIdentityService(t)
	ctx := context.Background()

	session, err := service.CreateAccount(ctx, "user@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected setup account to be created, got %v", err)
	}

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.SignInWithPassword(ctx, "nobody@example.com", "secret1")
		expectCode(t, err, identity.CodeUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.SignInWithPassword(ctx, "user@example.com", "nope")
		expectCode(t, err, identity.CodeWrongPassword)
	})

	t.Run("disabled", func(t *testing.T) {
		if err := accounts.SetDisabled(session.UserID, true); err != nil {
			t.Fatalf("Expected account to be disabled, got %v", err)
		}

		defer func() { _ = accounts.SetDisabled(session.UserID, false) }()

		_, err := service.SignInWithPassword(ctx, "user@example.com", "secret1")
		expectCode(t, err, identity.CodeUserDisabled)
	})
}

func TestSignInLocksOutAfterRepeatedFailures(t *testing.T) {
	service, accounts, _ := newTestIdentityService(t)
	ctx := context.Background()

	session, err := service.CreateAccount(ctx, "locked@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected setup account to be created, got %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err = service.SignInWithPassword(ctx, "locked@example.com", "wrong")
		expectCode(t, err, identity.CodeWrongPassword)
	}

	_, err = service.SignInWithPassword(ctx, "locked@example.com", "secret1")
	expectCode(t, err, identity.CodeTooManyRequests)

	service.now = func() time.Time { return time.Now().Add(time.Hour) }

	if _, err = service.SignInWithPassword(ctx, "locked@example.com", "secret1"); err != nil {
		t.Fatalf("Expected sign in after the lockout window, got %v", err)
	}

	user, err := accounts.GetByID(session.UserID)

	if err != nil {
		t.Fatalf("Expected user lookup, got %v", err)
	}

	if user.FailedAttempts != 0 || user.LastFailedAt != nil {
		t.Errorf("Expected failed attempts to be reset, got %d", user.FailedAttempts)
	}
}

func TestSignInWithFederated(t *testing.T) {
	service, accounts, _ := newTestIdentityService(t)
	ctx := context.Background()

	t.Run("creates a new account", func(t *testing.T) {
		session, err := service.SignInWithFederated(ctx, identity.FederatedIdentity{
			Provider:    models.ProviderGoogle,
			Subject:     "google-1",
			Email:       "fed@example.com",
			DisplayName: "Fed User",
		})

		if err != nil {
			t.Fatalf("Expected federated sign in, got %v", err)
		}

		if session.DisplayName != "Fed User" || session.Provider != models.ProviderGoogle {
			t.Errorf("Expected google session for Fed User, got %+v", session)
		}

		again, err := service.SignInWithFederated(ctx, identity.FederatedIdentity{
			Provider: models.ProviderGoogle,
			Subject:  "google-1",
			Email:    "fed@example.com",
		})

		if err != nil || again.UserID != session.UserID {
			t.Errorf("Expected the same account on second sign in, got %+v / %v", again, err)
		}
	})

	t.Run("links an existing password account", func(t *testing.T) {
		created, err := service.CreateAccount(ctx, "link@example.com", "secret1")

		if err != nil {
			t.Fatalf("Expected setup account to be created, got %v", err)
		}

		session, err := service.SignInWithFederated(ctx, identity.FederatedIdentity{
			Provider: models.ProviderGoogle,
			Subject:  "google-2",
			Email:    "link@example.com",
		})

		if err != nil {
			t.Fatalf("Expected federated sign in, got %v", err)
		}

		if session.UserID != created.UserID {
			t.Errorf("Expected the existing account to be linked, got user %d", session.UserID)
		}

		user, _ := accounts.GetByID(created.UserID)

		if user.ProviderSubject != "google-2" {
			t.Errorf("Expected provider subject google-2, got %q", user.ProviderSubject)
		}
	})

	t.Run("rejects incomplete identity", func(t *testing.T) {
		_, err := service.SignInWithFederated(ctx, identity.FederatedIdentity{Email: "x@example.com"})
		expectCode(t, err, identity.CodeProviderError)
	})
}

func TestResolveAndSignOut(t *testing.T) {
	service, _, authSessions := newTestIdentityService(t)
	ctx := context.Background()

	session, err := service.CreateAccount(ctx, "resolve@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected setup account to be created, got %v", err)
	}

	_, err = service.Resolve(ctx, "missing-token")
	expectCode(t, err, identity.CodeSessionExpired)

	if err = service.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("Expected sign out, got %v", err)
	}

	_, err = service.Resolve(ctx, session.Token)
	expectCode(t, err, identity.CodeSessionExpired)

	session, _ = service.SignInWithPassword(ctx, "resolve@example.com", "secret1")
	service.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }

	_, err = service.Resolve(ctx, session.Token)
	expectCode(t, err, identity.CodeSessionExpired)

	_, err = authSessions.Get(session.Token)

	if !sqlz.IsNotFound(err) {
		t.Errorf("Expected expired session to be deleted, got %v", err)
	}
}

func TestDeleteExpiredAuthSessions(t *testing.T) {
	service, accounts, authSessions := newTestIdentityService(t)

	if _, err := service.CreateAccount(context.Background(), "expire@example.com", "secret1"); err != nil {
		t.Fatalf("Expected setup account to be created, got %v", err)
	}

	user, err := accounts.GetByEmail("expire@example.com")

	if err != nil {
		t.Fatalf("Expected user lookup, got %v", err)
	}

	if _, err = authSessions.Create(user, -time.Minute); err != nil {
		t.Fatalf("Expected expired session to be created, got %v", err)
	}

	removed, err := authSessions.DeleteExpired(time.Now())

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if removed != 1 {
		t.Errorf("Expected 1 expired session removed, got %d", removed)
	}
}

func TestIdentityErrorsMatchByCode(t *testing.T) {
	service, _, _ := newTestIdentityService(t)

	_, err := service.SignInWithPassword(context.Background(), "nobody@example.com", "x")

	if !errors.Is(err, identity.NewError(identity.CodeUserNotFound, "")) {
		t.Errorf("Expected errors.Is to match on code, got %v", err)
	}

	if msg := identity.UserMessage("Login", err); msg != "No account found with this email. Please sign up first." {
		t.Errorf("Expected user-not-found message, got %q", msg)
	}
}

func TestActiveUserIDs(t *testing.T) {
	service, accounts, authSessions := newTestIdentityService(t)
	ctx := context.Background()

	signedIn, err := service.CreateAccount(ctx, "a@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected account to be created, got %v", err)
	}

	expired, err := service.CreateAccount(ctx, "b@example.com", "secret1")

	if err != nil {
		t.Fatalf("Expected account to be created, got %v", err)
	}

	if err = authSessions.Delete(expired.Token); err != nil {
		t.Fatalf("Expected session to be deleted, got %v", err)
	}

	user, err := accounts.GetByID(expired.UserID)

	if err != nil {
		t.Fatalf("Expected user to load, got %v", err)
	}

	if _, err = authSessions.Create(user, -time.Hour); err != nil {
		t.Fatalf("Expected expired session to be created, got %v", err)
	}

	active, err := authSessions.ActiveUserIDs(time.Now())

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, ok := active[signedIn.UserID]; !ok {
		t.Errorf("Expected user %d to be active", signedIn.UserID)
	}

	if _, ok := active[expired.UserID]; ok {
		t.Errorf("Expected user %d with only an expired session to be inactive", expired.UserID)
	}
}
