package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/movie-rating-service/internal/cache"
	"github.com/spec-kit/movie-rating-service/internal/domain"
	"github.com/spec-kit/movie-rating-service/internal/events"
	"github.com/spec-kit/movie-rating-service/internal/repository"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

// MovieService coordinates catalog writes and paged reads.
type MovieService struct {
	movies     repository.MovieRepository
	dispatcher events.Dispatcher
	store      cache.Store
}

// NewMovieService constructs the service.
func NewMovieService(movies repository.MovieRepository, dispatcher events.Dispatcher, store cache.Store) *MovieService {
	return &MovieService{movies: movies, dispatcher: dispatcher, store: store}
}

// MovieCreateInput describes movie creation payload.
type MovieCreateInput struct {
	Title       string
	Description string
	ReleaseDate time.Time
	Genre       string
	Director    string
}

// MovieListInput describes paged listing parameters.
type MovieListInput struct {
	Page           int
	Size           int
	SortBy         string
	SortDescending bool
}

// MoviePageResult is a page of movies with pagination metadata.
type MoviePageResult struct {
	Movies        []domain.Movie
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
	HasNext       bool
	HasPrevious   bool
}

// Create adds a movie to the catalog.
func (s *MovieService) Create(ctx context.Context, input MovieCreateInput) (*domain.Movie, error) {
	movie := &domain.Movie{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		ReleaseDate: input.ReleaseDate,
		Genre:       input.Genre,
		Director:    input.Director,
	}
	if err := s.movies.Create(ctx, movie); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type: events.EventMovieCreated,
		Payload: events.MovieCreatedPayload{
			MovieID: movie.ID,
			Title:   movie.Title,
			Genre:   movie.Genre,
		},
	})
	return movie, nil
}

// GetByID fetches a movie, served through the read cache.
func (s *MovieService) GetByID(ctx context.Context, movieID string) (*domain.Movie, error) {
	key := cache.MovieKey(movieID)
	if s.store != nil {
		var cached domain.Movie
		if err := s.store.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	movie, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("movie", map[string]any{"movie_id": movieID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if s.store != nil {
		_ = s.store.Set(ctx, key, movie)
	}
	return movie, nil
}

// List returns a page of the catalog with pagination metadata.
func (s *MovieService) List(ctx context.Context, input MovieListInput) (*MoviePageResult, error) {
	size := input.Size
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	page := input.Page
	if page < 0 {
		page = 0
	}

	movies, total, err := s.movies.List(ctx, repository.MoviePage{
		Page:           page,
		Size:           size,
		SortBy:         input.SortBy,
		SortDescending: input.SortDescending,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return &MoviePageResult{
		Movies:        movies,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
		HasNext:       page+1 < totalPages,
		HasPrevious:   page > 0 && total > 0,
	}, nil
}

func (s *MovieService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
