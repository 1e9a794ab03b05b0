package dto

import (
	"time"

	"github.com/spec-kit/movie-rating-service/internal/domain"
)

// CreateMovieRequest payload.
type CreateMovieRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ReleaseDate string `json:"release_date"`
	Genre       string `json:"genre"`
	Director    string `json:"director"`
}

// MovieResponse response.
type MovieResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ReleaseDate string     `json:"release_date"`
	Genre       string     `json:"genre"`
	Director    string     `json:"director"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// PagedMoviesResponse is a page of movies with pagination metadata.
type PagedMoviesResponse struct {
	Movies        []MovieResponse `json:"movies"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalElements int64           `json:"total_elements"`
	TotalPages    int             `json:"total_pages"`
	HasNext       bool            `json:"has_next"`
	HasPrevious   bool            `json:"has_previous"`
}

// FromMovie maps a domain movie to its response shape.
func FromMovie(movie *domain.Movie) MovieResponse {
	return MovieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		Description: movie.Description,
		ReleaseDate: movie.ReleaseDate.Format(time.DateOnly),
		Genre:       movie.Genre,
		Director:    movie.Director,
		CreatedAt:   movie.CreatedAt,
		UpdatedAt:   movie.UpdatedAt,
	}
}
