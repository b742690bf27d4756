package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/rfberaldo/sqlz"
)

type AccountServicer interface {
	Create(user *models.User) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id uint) (*models.User, error)
	GetByProviderSubject(provider, subject string) (*models.User, error)
	LinkProvider(userID uint, provider, subject, displayName string) error
	RecordFailedLogin(userID uint, at time.Time) error
	ResetFailedLogins(userID uint) error
	SetDisabled(userID uint, disabled bool) error
}

type AccountServiceConfig struct {
	DB *sqlz.DB
}

type AccountService struct {
	db *sqlz.DB
}

func NewAccountService(config AccountServiceConfig) AccountService {
	return AccountService{
		db: config.DB,
	}
}

const userColumns = `
   u.id
   , u.created_at
   , u.updated_at
   , u.deleted_at
   , u.email
   , u.display_name
   , u.password_hash
   , u.provider
   , u.provider_subject
   , u.disabled
   , u.failed_attempts
   , u.last_failed_at
`

func (s AccountService) Create(user *models.User) (*models.User, error) {
	var (
		err error
		id  int64
	)

	now := time.Now().UTC()

	sql := `
INSERT INTO users (
   created_at
   , updated_at
   , email
   , display_name
   , password_hash
   , provider
   , provider_subject
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		now,
		now,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.Provider,
		user.ProviderSubject,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, params...)

	if err != nil {
		return nil, fmt.Errorf("error inserting user %s: %w", user.Email, err)
	}

	if id, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("error getting ID for new user %s: %w", user.Email, err)
	}

	return s.GetByID(uint(id))
}

func (s AccountService) GetByEmail(email string) (*models.User, error) {
	result := &models.User{}

	sql := `
SELECT` + userColumns + `
FROM users AS u
WHERE 1=1
   AND u.deleted_at IS NULL
   AND u.email=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, email); err != nil {
		return result, fmt.Errorf("error querying for user by email: %w", err)
	}

	return result, nil
}

func (s AccountService) GetByID(id uint) (*models.User, error) {
	result := &models.User{}

	sql := `
SELECT` + userColumns + `
FROM users AS u
WHERE 1=1
   AND u.deleted_at IS NULL
   AND u.id=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, id); err != nil {
		return result, fmt.Errorf("error querying for user %d: %w", id, err)
	}

	return result, nil
}

func (s AccountService) GetByProviderSubject(provider, subject string) (*models.User, error) {
	result := &models.User{}

	sql := `
SELECT` + userColumns + `
FROM users AS u
WHERE 1=1
   AND u.deleted_at IS NULL
   AND u.provider=?
   AND u.provider_subject=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, provider, subject); err != nil {
		return result, fmt.Errorf("error querying for user by %s subject: %w", provider, err)
	}

	return result, nil
}

/*
LinkProvider attaches a federated identity to an existing account, so
someone who signed up with a password can later use Google with the
same email.
*/
func (s AccountService) LinkProvider(userID uint, provider, subject, displayName string) error {
	sql := `
UPDATE users SET
   provider=?
   , provider_subject=?
   , display_name=CASE WHEN display_name='' THEN ? ELSE display_name END
   , updated_at=?
WHERE id=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, provider, subject, displayName, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("error linking %s identity to user %d: %w", provider, userID, err)
	}

	return nil
}

func (s AccountService) RecordFailedLogin(userID uint, at time.Time) error {
	sql := `
UPDATE users SET
   failed_attempts=failed_attempts + 1
   , last_failed_at=?
WHERE id=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, at.UTC(), userID); err != nil {
		return fmt.Errorf("error recording failed login for user %d: %w", userID, err)
	}

	return nil
}

func (s AccountService) ResetFailedLogins(userID uint) error {
	sql := `
UPDATE users SET
   failed_attempts=0
   , last_failed_at=NULL
WHERE id=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, userID); err != nil {
		return fmt.Errorf("error resetting failed logins for user %d: %w", userID, err)
	}

	return nil
}

func (s AccountService) SetDisabled(userID uint, disabled bool) error {
	sql := `
UPDATE users SET
   disabled=?
   , updated_at=?
WHERE id=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, disabled, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("error updating disabled flag for user %d: %w", userID, err)
	}

	return nil
}
