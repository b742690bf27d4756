package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/google/uuid"
	"github.com/rfberaldo/sqlz"
)

type AuthSessionServicer interface {
	Create(user *models.User, ttl time.Duration) (*models.AuthSession, error)
	Get(token string) (*models.AuthSession, error)
	Delete(token string) error
	DeleteExpired(now time.Time) (int64, error)
	ActiveUserIDs(now time.Time) (map[uint]struct{}, error)
}

type AuthSessionServiceConfig struct {
	DB *sqlz.DB
}

type AuthSessionService struct {
	db *sqlz.DB
}

func NewAuthSessionService(config AuthSessionServiceConfig) AuthSessionService {
	return AuthSessionService{
		db: config.DB,
	}
}

func (s AuthSessionService) Create(user *models.User, ttl time.Duration) (*models.AuthSession, error) {
	now := time.Now().UTC()

	result := &models.AuthSession{
		Token:       uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Provider:    user.Provider,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	sql := `
INSERT INTO auth_sessions (
   token
   , user_id
   , created_at
   , expires_at
) VALUES (?, ?, ?, ?)
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, result.Token, result.UserID, result.CreatedAt, result.ExpiresAt); err != nil {
		return nil, fmt.Errorf("error creating auth session for user %d: %w", user.ID, err)
	}

	return result, nil
}

func (s AuthSessionService) Get(token string) (*models.AuthSession, error) {
	result := &models.AuthSession{}

	sql := `
SELECT
   s.token
   , s.user_id
   , s.created_at
   , s.expires_at
   , u.email
   , u.display_name
   , u.provider
FROM auth_sessions AS s
   INNER JOIN users AS u ON u.id=s.user_id
WHERE 1=1
   AND u.deleted_at IS NULL
   AND s.token=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, token); err != nil {
		return result, fmt.Errorf("error querying for auth session: %w", err)
	}

	return result, nil
}

func (s AuthSessionService) Delete(token string) error {
	sql := `
DELETE FROM auth_sessions
WHERE token=?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, token); err != nil {
		return fmt.Errorf("error deleting auth session: %w", err)
	}

	return nil
}

func (s AuthSessionService) DeleteExpired(now time.Time) (int64, error) {
	sql := `
DELETE FROM auth_sessions
WHERE expires_at < ?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, now.UTC())

	if err != nil {
		return 0, fmt.Errorf("error deleting expired auth sessions: %w", err)
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

// ActiveUserIDs returns the users holding at least one unexpired auth session.
func (s AuthSessionService) ActiveUserIDs(now time.Time) (map[uint]struct{}, error) {
	var (
		err  error
		rows []struct {
			UserID uint `db:"user_id"`
		}
	)

	sql := `
SELECT DISTINCT
   s.user_id
FROM auth_sessions AS s
WHERE 1=1
   AND s.expires_at >= ?
`

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &rows, sql, now.UTC()); err != nil {
		return nil, fmt.Errorf("error querying for active auth session users: %w", err)
	}

	result := make(map[uint]struct{}, len(rows))

	for _, row := range rows {
		result[row.UserID] = struct{}{}
	}

	return result, nil
}
