package domain

import "time"

// User is the domain model for registered catalog users.
type User struct {
	ID        string
	Email     string
	Username  string
	FullName  string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
