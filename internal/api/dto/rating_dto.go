package dto

import (
	"time"

	"github.com/spec-kit/movie-rating-service/internal/domain"
)

// CreateRatingRequest payload for the idempotent rating upsert.
type CreateRatingRequest struct {
	UserID  string  `json:"user_id"`
	MovieID string  `json:"movie_id"`
	Value   int     `json:"value"`
	Comment *string `json:"comment"`
}

// RatingResponse response. The row version stays internal.
type RatingResponse struct {
	UserID    string     `json:"user_id"`
	MovieID   string     `json:"movie_id"`
	Value     int        `json:"value"`
	Comment   *string    `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// FromRating maps a domain rating to its response shape.
func FromRating(rating *domain.Rating) RatingResponse {
	return RatingResponse{
		UserID:    rating.UserID,
		MovieID:   rating.MovieID,
		Value:     rating.Value.Int(),
		Comment:   rating.Comment,
		CreatedAt: rating.CreatedAt,
		UpdatedAt: rating.UpdatedAt,
	}
}
