package models

import (
	"fmt"
	"time"
)

var (
	ErrUserNotFound = fmt.Errorf("user not found")
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	BaseModel

	Email           string     `db:"email"`
	DisplayName     string     `db:"display_name"`
	PasswordHash    string     `db:"password_hash"`
	Provider        string     `db:"provider"`
	ProviderSubject string     `db:"provider_subject"`
	Disabled        bool       `db:"disabled"`
	FailedAttempts  int        `db:"failed_attempts"`
	LastFailedAt    *time.Time `db:"last_failed_at"`
}
