package domain

import (
	"fmt"
	"time"
)

// Rating value bounds.
const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// RatingValue is a bounded rating scalar.
type RatingValue int

// NewRatingValue validates the 1..5 range.
func NewRatingValue(value int) (RatingValue, error) {
	if value < MinRatingValue || value > MaxRatingValue {
		return 0, fmt.Errorf("rating value must be between %d and %d but was %d", MinRatingValue, MaxRatingValue, value)
	}
	return RatingValue(value), nil
}

// Int returns the underlying scalar.
func (v RatingValue) Int() int {
	return int(v)
}

// Rating is one user's rating of one movie. At most one row exists per
// (UserID, MovieID) pair; the ratings table enforces this with a unique
// constraint and the upsert engine preserves it under concurrent writers.
//
// Version is the optimistic-lock token owned by the repository. It is not
// part of the API contract and never appears in responses.
type Rating struct {
	UserID    string
	MovieID   string
	Value     RatingValue
	Comment   *string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Version   int64
}
