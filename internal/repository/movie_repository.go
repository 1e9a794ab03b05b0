package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/movie-rating-service/internal/domain"
)

// MoviePage captures listing parameters for the movie catalog.
type MoviePage struct {
	Page           int
	Size           int
	SortBy         string
	SortDescending bool
}

// MovieRepository defines persistence access for movies.
type MovieRepository interface {
	Create(ctx context.Context, movie *domain.Movie) error
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, page MoviePage) ([]domain.Movie, int64, error)
}

type movieRepository struct {
	pool *pgxpool.Pool
}

// NewMovieRepository returns a Postgres-backed implementation.
func NewMovieRepository(pool *pgxpool.Pool) MovieRepository {
	return &movieRepository{pool: pool}
}

func (r *movieRepository) Create(ctx context.Context, movie *domain.Movie) error {
	const query = `
        INSERT INTO movies (id, title, description, release_date, genre, director)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		movie.ID,
		movie.Title,
		movie.Description,
		movie.ReleaseDate,
		movie.Genre,
		movie.Director,
	).Scan(&movie.CreatedAt)
}

func (r *movieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	const query = `
        SELECT id, title, description, release_date, genre, director, created_at, updated_at
        FROM movies WHERE id=$1`

	var movie domain.Movie
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.Description,
		&movie.ReleaseDate,
		&movie.Genre,
		&movie.Director,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &movie, nil
}

func (r *movieRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM movies WHERE id=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// sortColumns whitelists sortable columns; anything else falls back to created_at.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"title":       "title",
	"releaseDate": "release_date",
}

func (r *movieRepository) List(ctx context.Context, page MoviePage) ([]domain.Movie, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if page.SortDescending {
		direction = "DESC"
	}

	size := page.Size
	if size <= 0 {
		size = 20
	}
	offset := page.Page * size
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT id, title, description, release_date, genre, director, created_at, updated_at
        FROM movies ORDER BY %s %s LIMIT %d OFFSET %d`, column, direction, size, offset)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Movie
	for rows.Next() {
		var movie domain.Movie
		if err := rows.Scan(
			&movie.ID,
			&movie.Title,
			&movie.Description,
			&movie.ReleaseDate,
			&movie.Genre,
			&movie.Director,
			&movie.CreatedAt,
			&movie.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}
