package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/movie-rating-service/internal/cache"
	"github.com/spec-kit/movie-rating-service/internal/domain"
	"github.com/spec-kit/movie-rating-service/internal/events"
	"github.com/spec-kit/movie-rating-service/internal/observability"
	"github.com/spec-kit/movie-rating-service/internal/repository"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

// RatingService owns all writes to ratings. Its Upsert call is the only
// mutation path: callers get back immutable snapshots and never touch stored
// state directly.
type RatingService struct {
	ratings    repository.RatingRepository
	users      repository.UserRepository
	movies     repository.MovieRepository
	retry      RetryPolicy
	dispatcher events.Dispatcher
	store      cache.Store
	metrics    *observability.Metrics
	logger     *zap.Logger
	sleep      sleepFn
}

// RatingDependencies bundles collaborators for the rating service.
type RatingDependencies struct {
	RatingRepo repository.RatingRepository
	UserRepo   repository.UserRepository
	MovieRepo  repository.MovieRepository
	Retry      RetryPolicy
	Dispatcher events.Dispatcher
	Cache      cache.Store
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRatingService constructs the service.
func NewRatingService(deps RatingDependencies) *RatingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := deps.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &RatingService{
		ratings:    deps.RatingRepo,
		users:      deps.UserRepo,
		movies:     deps.MovieRepo,
		retry:      retry,
		dispatcher: deps.Dispatcher,
		store:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     logger,
		sleep:      sleepWithContext,
	}
}

// Upsert creates or updates the caller's rating for a movie. The operation
// is idempotent per (userID, movieID): submitting twice converges to one row
// holding the last writer's value.
//
// Concurrency protocol: each attempt reads the current row and issues a
// conditional write. A version conflict on update means another writer won
// the race after our read; the attempt is retried with backoff. A duplicate
// key on insert means another writer created the row between our read and
// our insert; the engine falls forward by re-reading and updating within the
// same attempt instead of surfacing an error. Both signals are resolved
// internally; callers only ever observe a Rating or one of the terminal
// errors (not-found, validation, concurrency conflict).
func (s *RatingService) Upsert(ctx context.Context, userID, movieID string, value int, comment *string) (*domain.Rating, error) {
	ratingValue, err := domain.NewRatingValue(value)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"value": value})
	}

	// Preconditions are checked once, outside the retry loop: they are not
	// transient and must fail before any row is written.
	userExists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !userExists {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	movieExists, err := s.movies.Exists(ctx, movieID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !movieExists {
		return nil, apperrors.NewNotFound("movie", map[string]any{"movie_id": movieID})
	}

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.retry.DelayFor(attempt-1)); err != nil {
				return nil, err
			}
		}

		rating, created, err := s.attemptUpsert(ctx, userID, movieID, ratingValue, comment)
		if err == nil {
			s.afterTerminalWrite(ctx, rating, created)
			return rating, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, apperrors.NewInternalError(err)
		}

		s.metrics.RecordUpsertRetry("conflict")
		s.logger.Debug("rating upsert contention",
			zap.String("user_id", userID),
			zap.String("movie_id", movieID),
			zap.Int("attempt", attempt),
		)
	}

	s.metrics.RecordUpsertRetry("exhausted")
	return nil, apperrors.NewConcurrencyConflict(
		"rating could not be saved due to concurrent updates",
		map[string]any{"user_id": userID, "movie_id": movieID},
	)
}

// attemptUpsert runs one read-then-conditional-write cycle. It returns
// ErrVersionConflict when the attempt lost a race on an existing row; any
// duplicate-key race on insert is absorbed here by falling forward into an
// update of the now-existing row.
func (s *RatingService) attemptUpsert(ctx context.Context, userID, movieID string, value domain.RatingValue, comment *string) (*domain.Rating, bool, error) {
	current, err := s.ratings.FindByKey(ctx, userID, movieID)
	switch {
	case err == nil:
		updated, err := s.updateExisting(ctx, current, value, comment)
		return updated, false, err

	case errors.Is(err, repository.ErrNotFound):
		fresh := &domain.Rating{
			UserID:    userID,
			MovieID:   movieID,
			Value:     value,
			Comment:   comment,
			CreatedAt: time.Now().UTC(),
		}
		err := s.ratings.Insert(ctx, fresh)
		if err == nil {
			return fresh, true, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, false, err
		}
		// Another writer inserted this key between our read and our insert.
		// Not a domain error: re-read and merge our value into the row.
		existing, err := s.ratings.FindByKey(ctx, userID, movieID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// the competing row vanished again; retry the whole attempt
				return nil, false, repository.ErrVersionConflict
			}
			return nil, false, err
		}
		updated, err := s.updateExisting(ctx, existing, value, comment)
		return updated, false, err

	default:
		return nil, false, err
	}
}

func (s *RatingService) updateExisting(ctx context.Context, current *domain.Rating, value domain.RatingValue, comment *string) (*domain.Rating, error) {
	// last-writer-wins on value and comment; no field-level merge
	merged := *current
	merged.Value = value
	merged.Comment = comment

	if err := s.ratings.UpdateWithVersionCheck(ctx, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ListForUser returns all ratings submitted by a user, served through the
// read cache.
func (s *RatingService) ListForUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !exists {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}

	key := cache.UserRatingsKey(userID)
	if s.store != nil {
		var cached []domain.Rating
		if err := s.store.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	ratings, err := s.ratings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if s.store != nil {
		_ = s.store.Set(ctx, key, ratings)
	}
	return ratings, nil
}

// afterTerminalWrite runs cache eviction and event publication once a write
// has committed. Eviction happens strictly after the commit so no reader can
// repopulate the cache from pre-write state.
func (s *RatingService) afterTerminalWrite(ctx context.Context, rating *domain.Rating, created bool) {
	if s.store != nil {
		_ = s.store.Delete(ctx, cache.UserRatingsKey(rating.UserID))
	}

	eventType := events.EventRatingUpdated
	if created {
		eventType = events.EventRatingCreated
	}
	s.publishEvent(ctx, events.Event{
		Type: eventType,
		Payload: events.RatingUpsertedPayload{
			UserID:  rating.UserID,
			MovieID: rating.MovieID,
			Value:   rating.Value.Int(),
		},
	})
}

func (s *RatingService) publishEvent(ctx context.Context, event events.Event) {
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
