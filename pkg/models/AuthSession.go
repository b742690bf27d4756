package models

import "time"

/*
AuthSession is what the identity gateway hands back after a successful
sign in. Views only care whether one is present, and use UserID when
deciding where to send someone.
*/
type AuthSession struct {
	Token       string    `db:"token"`
	UserID      uint      `db:"user_id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	Provider    string    `db:"provider"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (s *AuthSession) IsAuthenticated() bool {
	return s != nil && s.Token != "" && s.UserID != 0
}

func (s *AuthSession) Name() string {
	if s == nil {
		return ""
	}

	if s.DisplayName != "" {
		return s.DisplayName
	}

	return s.Email
}
