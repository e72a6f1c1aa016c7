package users

import "time"

// User represents an account as shown in the management console.
type User struct {
	ID        int64
	Email     string
	Name      string
	Status    string
	RoleName  string
	HasRole   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
