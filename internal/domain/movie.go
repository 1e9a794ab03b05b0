package domain

import "time"

// Movie is the catalog entry users rate.
type Movie struct {
	ID          string
	Title       string
	Description string
	ReleaseDate time.Time
	Genre       string
	Director    string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
