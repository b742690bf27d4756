package services

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/identity"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/rfberaldo/sqlz"
	"golang.org/x/crypto/bcrypt"
)

type IdentityServiceConfig struct {
	AccountService     AccountServicer
	AuthSessionService AuthSessionServicer
	BcryptCost         int
	LockoutWindow      time.Duration
	MaxFailedAttempts  int
	MinPasswordLength  int
	SessionTTL         time.Duration
}

/*
IdentityService is the backend of the identity gateway: it checks
credentials, owns accounts, and issues auth sessions. Failures the user
can act on come back as *identity.Error.
*/
type IdentityService struct {
	accountService     AccountServicer
	authSessionService AuthSessionServicer
	bcryptCost         int
	lockoutWindow      time.Duration
	maxFailedAttempts  int
	minPasswordLength  int
	sessionTTL         time.Duration
	now                func() time.Time
}

func NewIdentityService(config IdentityServiceConfig) IdentityService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	if config.LockoutWindow <= 0 {
		config.LockoutWindow = 15 * time.Minute
	}

	if config.MaxFailedAttempts <= 0 {
		config.MaxFailedAttempts = 5
	}

	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}

	if config.SessionTTL <= 0 {
		config.SessionTTL = 7 * 24 * time.Hour
	}

	return IdentityService{
		accountService:     config.AccountService,
		authSessionService: config.AuthSessionService,
		bcryptCost:         config.BcryptCost,
		lockoutWindow:      config.LockoutWindow,
		maxFailedAttempts:  config.MaxFailedAttempts,
		minPasswordLength:  config.MinPasswordLength,
		sessionTTL:         config.SessionTTL,
		now:                time.Now,
	}
}

func (s IdentityService) CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error) {
	var (
		err  error
		hash []byte
		user *models.User
	)

	if email, err = normalizeEmail(email); err != nil {
		return nil, err
	}

	if len(password) < s.minPasswordLength {
		return nil, identity.NewError(identity.CodeWeakPassword, "password is too short")
	}

	if _, err = s.accountService.GetByEmail(email); err == nil {
		return nil, identity.NewError(identity.CodeEmailAlreadyInUse, "email already in use")
	} else if !sqlz.IsNotFound(err) {
		return nil, identity.WrapError(identity.CodeInternal, "unable to look up account", err)
	}

	if hash, err = bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost); err != nil {
		return nil, identity.WrapError(identity.CodeInternal, "unable to hash password", err)
	}

	user, err = s.accountService.Create(&models.User{
		Email:        email,
		DisplayName:  displayNameFromEmail(email),
		PasswordHash: string(hash),
		Provider:     models.ProviderPassword,
	})

	if err != nil {
		return nil, identity.WrapError(identity.CodeInternal, "unable to create account", err)
	}

	slog.Info("account created", "userID", user.ID, "email", user.Email)
	return s.issueSession(user)
}

func (s IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	var (
		err  error
		user *models.User
	)

	if email, err = normalizeEmail(email); err != nil {
		return nil, err
	}

	if user, err = s.accountService.GetByEmail(email); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, identity.NewError(identity.CodeUserNotFound, "no account for this email")
		}

		return nil, identity.WrapError(identity.CodeInternal, "unable to look up account", err)
	}

	if user.Disabled {
		return nil, identity.NewError(identity.CodeUserDisabled, "account is disabled")
	}

	if s.isLockedOut(user) {
		return nil, identity.NewError(identity.CodeTooManyRequests, "too many failed attempts")
	}

	if user.PasswordHash == "" {
		return nil, identity.NewError(identity.CodeWrongPassword, "account has no password. Sign in with "+user.Provider)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if recordErr := s.accountService.RecordFailedLogin(user.ID, s.now()); recordErr != nil {
			slog.Error("error recording failed login", "userID", user.ID, "error", recordErr)
		}

		return nil, identity.NewError(identity.CodeWrongPassword, "wrong password")
	}

	if user.FailedAttempts > 0 {
		if err = s.accountService.ResetFailedLogins(user.ID); err != nil {
			slog.Error("error resetting failed logins", "userID", user.ID, "error", err)
		}
	}

	return s.issueSession(user)
}

/*
SignInWithFederated signs in with a provider-verified identity. The
account is found by provider subject, then by email (linking the
provider), and created when neither exists.
*/
func (s IdentityService) SignInWithFederated(ctx context.Context, federated identity.FederatedIdentity) (*models.AuthSession, error) {
	var (
		err   error
		email string
		user  *models.User
	)

	if federated.Provider == "" || federated.Subject == "" {
		return nil, identity.NewError(identity.CodeProviderError, "federated identity is incomplete")
	}

	if email, err = normalizeEmail(federated.Email); err != nil {
		return nil, err
	}

	user, err = s.accountService.GetByProviderSubject(federated.Provider, federated.Subject)

	if err != nil && !sqlz.IsNotFound(err) {
		return nil, identity.WrapError(identity.CodeInternal, "unable to look up account", err)
	}

	if sqlz.IsNotFound(err) {
		if user, err = s.accountService.GetByEmail(email); err == nil {
			if err = s.accountService.LinkProvider(user.ID, federated.Provider, federated.Subject, federated.DisplayName); err != nil {
				return nil, identity.WrapError(identity.CodeInternal, "unable to link account", err)
			}

			slog.Info("linked federated identity to account", "userID", user.ID, "provider", federated.Provider)
		} else if sqlz.IsNotFound(err) {
			displayName := federated.DisplayName

			if displayName == "" {
				displayName = displayNameFromEmail(email)
			}

			user, err = s.accountService.Create(&models.User{
				Email:           email,
				DisplayName:     displayName,
				Provider:        federated.Provider,
				ProviderSubject: federated.Subject,
			})

			if err != nil {
				return nil, identity.WrapError(identity.CodeInternal, "unable to create account", err)
			}

			slog.Info("account created from federated identity", "userID", user.ID, "provider", federated.Provider)
		} else {
			return nil, identity.WrapError(identity.CodeInternal, "unable to look up account", err)
		}
	}

	if user.Disabled {
		return nil, identity.NewError(identity.CodeUserDisabled, "account is disabled")
	}

	return s.issueSession(user)
}

func (s IdentityService) SignOut(ctx context.Context, token string) error {
	if err := s.authSessionService.Delete(token); err != nil {
		return identity.WrapError(identity.CodeInternal, "unable to end session", err)
	}

	return nil
}

// Resolve returns the live session for token. Expired sessions are removed.
func (s IdentityService) Resolve(ctx context.Context, token string) (*models.AuthSession, error) {
	var (
		err     error
		session *models.AuthSession
	)

	if session, err = s.authSessionService.Get(token); err != nil {
		if sqlz.IsNotFound(err) {
			return nil, identity.NewError(identity.CodeSessionExpired, "session not found")
		}

		return nil, identity.WrapError(identity.CodeInternal, "unable to look up session", err)
	}

	if !session.ExpiresAt.After(s.now()) {
		if err = s.authSessionService.Delete(token); err != nil {
			slog.Error("error removing expired auth session", "userID", session.UserID, "error", err)
		}

		return nil, identity.NewError(identity.CodeSessionExpired, "session expired")
	}

	return session, nil
}

func (s IdentityService) issueSession(user *models.User) (*models.AuthSession, error) {
	session, err := s.authSessionService.Create(user, s.sessionTTL)

	if err != nil {
		return nil, identity.WrapError(identity.CodeInternal, "unable to start session", err)
	}

	return session, nil
}

func (s IdentityService) isLockedOut(user *models.User) bool {
	if user.FailedAttempts < s.maxFailedAttempts || user.LastFailedAt == nil {
		return false
	}

	return s.now().Sub(*user.LastFailedAt) < s.lockoutWindow
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	address, err := mail.ParseAddress(email)

	if err != nil || address.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", identity.NewError(identity.CodeInvalidEmail, "invalid email address")
	}

	return email, nil
}

func displayNameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

var _ identity.Backend = IdentityService{}
