package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/movie-rating-service/internal/domain"
)

const pgUniqueViolation = "23505"

// RatingRepository is the store port consumed by the rating upsert engine.
// It is the sole arbiter of the (user_id, movie_id) unique constraint and of
// the row version check; the engine holds no lock of its own.
type RatingRepository interface {
	// FindByKey returns the rating for the composite key, or ErrNotFound.
	FindByKey(ctx context.Context, userID, movieID string) (*domain.Rating, error)
	// Insert creates a fresh row. ErrDuplicateKey means a concurrent writer
	// inserted the same key between the caller's read and this insert.
	Insert(ctx context.Context, rating *domain.Rating) error
	// UpdateWithVersionCheck applies a conditional write. ErrVersionConflict
	// means the stored version no longer matches rating.Version.
	UpdateWithVersionCheck(ctx context.Context, rating *domain.Rating) error
	ListByUser(ctx context.Context, userID string) ([]domain.Rating, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository returns a Postgres-backed implementation.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

func (r *ratingRepository) FindByKey(ctx context.Context, userID, movieID string) (*domain.Rating, error) {
	const query = `
        SELECT user_id, movie_id, rating_value, comment, created_at, updated_at, version
        FROM ratings WHERE user_id=$1 AND movie_id=$2`

	var rating domain.Rating
	if err := r.pool.QueryRow(ctx, query, userID, movieID).Scan(
		&rating.UserID,
		&rating.MovieID,
		&rating.Value,
		&rating.Comment,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&rating.Version,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) Insert(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (user_id, movie_id, rating_value, comment)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, version`

	err := r.pool.QueryRow(ctx, query,
		rating.UserID,
		rating.MovieID,
		rating.Value,
		rating.Comment,
	).Scan(&rating.CreatedAt, &rating.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return err
	}
	rating.UpdatedAt = nil
	return nil
}

func (r *ratingRepository) UpdateWithVersionCheck(ctx context.Context, rating *domain.Rating) error {
	const query = `
        UPDATE ratings SET rating_value=$1, comment=$2, updated_at=NOW(), version=version+1
        WHERE user_id=$3 AND movie_id=$4 AND version=$5
        RETURNING created_at, updated_at, version`

	err := r.pool.QueryRow(ctx, query,
		rating.Value,
		rating.Comment,
		rating.UserID,
		rating.MovieID,
		rating.Version,
	).Scan(&rating.CreatedAt, &rating.UpdatedAt, &rating.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

func (r *ratingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	const query = `
        SELECT user_id, movie_id, rating_value, comment, created_at, updated_at, version
        FROM ratings WHERE user_id=$1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.UserID,
			&rating.MovieID,
			&rating.Value,
			&rating.Comment,
			&rating.CreatedAt,
			&rating.UpdatedAt,
			&rating.Version,
		); err != nil {
			return nil, err
		}
		result = append(result, rating)
	}
	return result, rows.Err()
}
