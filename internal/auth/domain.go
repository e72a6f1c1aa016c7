package auth

import "time"

// Account represents a credentialed admin-console account.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
