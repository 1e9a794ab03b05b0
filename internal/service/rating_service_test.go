package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/movie-rating-service/internal/cache"
	"github.com/spec-kit/movie-rating-service/internal/domain"
	"github.com/spec-kit/movie-rating-service/internal/events"
	"github.com/spec-kit/movie-rating-service/internal/observability"
	"github.com/spec-kit/movie-rating-service/internal/repository"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

const (
	testUserID  = "5f8b4a7e-1d2c-4e3f-9a0b-123456789abc"
	testMovieID = "0c1d2e3f-4a5b-6c7d-8e9f-abcdef012345"
)

func ratingKey(userID, movieID string) string {
	return userID + "|" + movieID
}

// memRatingRepo enforces the unique constraint and version check under a
// mutex, mirroring what the database does for the real repository.
type memRatingRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Rating

	beforeInsert func()
	updateErr    error
	updateCalls  int
	findCalls    int
	insertCalls  int
}

func newMemRatingRepo() *memRatingRepo {
	return &memRatingRepo{rows: make(map[string]domain.Rating)}
}

func (m *memRatingRepo) FindByKey(ctx context.Context, userID, movieID string) (*domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	row, ok := m.rows[ratingKey(userID, movieID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := row
	return &cp, nil
}

func (m *memRatingRepo) Insert(ctx context.Context, rating *domain.Rating) error {
	if m.beforeInsert != nil {
		m.beforeInsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	key := ratingKey(rating.UserID, rating.MovieID)
	if _, exists := m.rows[key]; exists {
		return repository.ErrDuplicateKey
	}
	rating.Version = 0
	rating.UpdatedAt = nil
	m.rows[key] = *rating
	return nil
}

func (m *memRatingRepo) UpdateWithVersionCheck(ctx context.Context, rating *domain.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	key := ratingKey(rating.UserID, rating.MovieID)
	row, ok := m.rows[key]
	if !ok || row.Version != rating.Version {
		return repository.ErrVersionConflict
	}
	now := time.Now().UTC()
	rating.Version++
	rating.UpdatedAt = &now
	m.rows[key] = *rating
	return nil
}

func (m *memRatingRepo) ListByUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Rating
	for _, row := range m.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *memRatingRepo) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memRatingRepo) row(userID, movieID string) (domain.Rating, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[ratingKey(userID, movieID)]
	return row, ok
}

type memUserRepo struct {
	ids map[string]bool
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }
func (m *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !m.ids[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.User{ID: id}, nil
}
func (m *memUserRepo) Exists(ctx context.Context, id string) (bool, error) { return m.ids[id], nil }
func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}
func (m *memUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return false, nil
}

type memMovieRepo struct {
	ids map[string]bool
}

func (m *memMovieRepo) Create(ctx context.Context, movie *domain.Movie) error { return nil }
func (m *memMovieRepo) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	if !m.ids[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.Movie{ID: id}, nil
}
func (m *memMovieRepo) Exists(ctx context.Context, id string) (bool, error) { return m.ids[id], nil }
func (m *memMovieRepo) List(ctx context.Context, page repository.MoviePage) ([]domain.Movie, int64, error) {
	return nil, 0, nil
}

// recordingDispatcher captures published event types.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.EventType
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event.Type)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) published() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.EventType{}, d.events...)
}

// sleepRecorder captures backoff delays instead of sleeping. Guarded by a
// mutex since concurrent upserts share one recorder.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration{}, r.delays...)
}

func (r *sleepRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = nil
}

type ratingFixture struct {
	svc        *RatingService
	ratings    *memRatingRepo
	dispatcher *recordingDispatcher
	metrics    *observability.Metrics
	sleeps     *sleepRecorder
}

func newRatingFixture(t *testing.T) *ratingFixture {
	t.Helper()
	ratings := newMemRatingRepo()
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewRatingService(RatingDependencies{
		RatingRepo: ratings,
		UserRepo:   &memUserRepo{ids: map[string]bool{testUserID: true}},
		MovieRepo:  &memMovieRepo{ids: map[string]bool{testMovieID: true}},
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})

	sleeps := &sleepRecorder{}
	svc.sleep = sleeps.sleep
	return &ratingFixture{svc: svc, ratings: ratings, dispatcher: dispatcher, metrics: metrics, sleeps: sleeps}
}

func strPtr(s string) *string { return &s }

func TestUpsertCreatesThenUpdates(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	first, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 5, strPtr("great"))
	require.NoError(t, err)
	assert.Equal(t, 5, first.Value.Int())
	require.NotNil(t, first.Comment)
	assert.Equal(t, "great", *first.Comment)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Nil(t, first.UpdatedAt, "updated_at stays null until the first update")

	second, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Value.Int())
	assert.Nil(t, second.Comment, "comment is last-writer-wins, not merged")
	assert.NotNil(t, second.UpdatedAt)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	assert.Equal(t, 1, fx.ratings.rowCount(), "exactly one row per (user, movie)")
	assert.Equal(t,
		[]events.EventType{events.EventRatingCreated, events.EventRatingUpdated},
		fx.dispatcher.published())
}

func TestUpsertRejectsOutOfRangeValues(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	for _, value := range []int{0, 6} {
		_, err := fx.svc.Upsert(ctx, testUserID, testMovieID, value, nil)
		require.Error(t, err, "value %d", value)
		domainErr := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)
	}
	assert.Equal(t, 0, fx.ratings.rowCount())

	for _, value := range []int{1, 5} {
		_, err := fx.svc.Upsert(ctx, testUserID, testMovieID, value, nil)
		require.NoError(t, err, "value %d", value)
	}
}

func TestUpsertChecksUserBeforeWriting(t *testing.T) {
	fx := newRatingFixture(t)

	// unknown user and unknown movie: the user check fails first and no row
	// is ever written
	_, err := fx.svc.Upsert(context.Background(), "11111111-2222-3333-4444-555555555555", "66666666-7777-8888-9999-000000000000", 4, nil)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeNotFound, domainErr.Code)
	assert.Contains(t, domainErr.Message, "user")
	assert.Equal(t, 0, fx.ratings.rowCount())
	assert.Equal(t, 0, fx.ratings.insertCalls)
}

func TestUpsertUnknownMovie(t *testing.T) {
	fx := newRatingFixture(t)

	_, err := fx.svc.Upsert(context.Background(), testUserID, "66666666-7777-8888-9999-000000000000", 4, nil)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeNotFound, domainErr.Code)
	assert.Contains(t, domainErr.Message, "movie")
	assert.Equal(t, 0, fx.ratings.rowCount())
}

func TestUpsertFallsForwardOnDuplicateKey(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	// simulate a competing writer inserting the row between our read and
	// our insert
	fx.ratings.beforeInsert = func() {
		hook := fx.ratings.beforeInsert
		fx.ratings.beforeInsert = nil
		defer func() { fx.ratings.beforeInsert = hook }()
		competing := &domain.Rating{
			UserID:    testUserID,
			MovieID:   testMovieID,
			Value:     domain.RatingValue(2),
			CreatedAt: time.Now().UTC(),
		}
		_ = fx.ratings.Insert(ctx, competing)
	}

	rating, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 5, strPtr("mine"))
	require.NoError(t, err, "duplicate key must be absorbed, not surfaced")
	assert.Equal(t, 5, rating.Value.Int(), "caller's value wins the merge")
	assert.NotNil(t, rating.UpdatedAt)

	assert.Equal(t, 1, fx.ratings.rowCount())
	assert.Empty(t, fx.sleeps.recorded(), "fall-forward resolves within the same attempt, no retry budget spent")
	assert.Equal(t, []events.EventType{events.EventRatingUpdated}, fx.dispatcher.published(),
		"merging into the competing row is an update, not a create")
}

func TestUpsertExhaustsRetryBudget(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 4, nil)
	require.NoError(t, err)

	fx.ratings.updateErr = repository.ErrVersionConflict
	fx.ratings.updateCalls = 0
	fx.sleeps.reset()

	_, err = fx.svc.Upsert(ctx, testUserID, testMovieID, 2, nil)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeConcurrencyConflict, domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)

	assert.Equal(t, 3, fx.ratings.updateCalls, "exactly maxAttempts conditional writes")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, fx.sleeps.recorded())
	assert.Equal(t, int64(3), fx.metrics.UpsertRetries("conflict"))
	assert.Equal(t, int64(1), fx.metrics.UpsertRetries("exhausted"))

	row, ok := fx.ratings.row(testUserID, testMovieID)
	require.True(t, ok)
	assert.Equal(t, 4, row.Value.Int(), "the stored row is untouched after exhaustion")
}

func TestUpsertNeverLeaksInternalSignals(t *testing.T) {
	fx := newRatingFixture(t)
	fx.ratings.updateErr = repository.ErrVersionConflict

	_, err := fx.svc.Upsert(context.Background(), testUserID, testMovieID, 3, nil)
	_, err2 := fx.svc.Upsert(context.Background(), testUserID, testMovieID, 3, nil)

	for _, e := range []error{err, err2} {
		if e == nil {
			continue
		}
		assert.False(t, errors.Is(e, repository.ErrVersionConflict), "version conflict must stay internal")
		assert.False(t, errors.Is(e, repository.ErrDuplicateKey), "duplicate key must stay internal")
	}
}

func TestUpsertConvergesUnderConcurrentWriters(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := i%domain.MaxRatingValue + 1
			_, errs[i] = fx.svc.Upsert(ctx, testUserID, testMovieID, value, strPtr(fmt.Sprintf("writer-%d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			domainErr := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeConcurrencyConflict, domainErr.Code,
				"only a concurrency conflict may surface under contention")
		}
	}
	assert.Greater(t, succeeded, 0, "at least one writer must land")
	assert.Equal(t, 1, fx.ratings.rowCount(), "uniqueness invariant holds under any interleaving")

	row, ok := fx.ratings.row(testUserID, testMovieID)
	require.True(t, ok)
	assert.GreaterOrEqual(t, row.Value.Int(), domain.MinRatingValue)
	assert.LessOrEqual(t, row.Value.Int(), domain.MaxRatingValue)
}

func TestUpsertCancelledDuringBackoff(t *testing.T) {
	fx := newRatingFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 4, nil)
	require.NoError(t, err)

	fx.ratings.updateErr = repository.ErrVersionConflict
	fx.svc.sleep = sleepWithContext
	cancel()

	_, err = fx.svc.Upsert(ctx, testUserID, testMovieID, 2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	row, ok := fx.ratings.row(testUserID, testMovieID)
	require.True(t, ok)
	assert.Equal(t, 4, row.Value.Int(), "no partially-applied state after cancellation")
}

func TestListForUserRequiresUser(t *testing.T) {
	fx := newRatingFixture(t)

	_, err := fx.svc.ListForUser(context.Background(), "11111111-2222-3333-4444-555555555555")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.ToDomainError(err).Code)
}

func TestUpsertEvictsUserRatingsCache(t *testing.T) {
	ratings := newMemRatingRepo()
	store := newMapStore()
	svc := NewRatingService(RatingDependencies{
		RatingRepo: ratings,
		UserRepo:   &memUserRepo{ids: map[string]bool{testUserID: true}},
		MovieRepo:  &memMovieRepo{ids: map[string]bool{testMovieID: true}},
		Cache:      store,
	})
	ctx := context.Background()

	_, err := svc.Upsert(ctx, testUserID, testMovieID, 4, nil)
	require.NoError(t, err)

	// warm the cache, then write again and observe the eviction
	_, err = svc.ListForUser(ctx, testUserID)
	require.NoError(t, err)
	require.True(t, store.has(cache.UserRatingsKey(testUserID)))

	_, err = svc.Upsert(ctx, testUserID, testMovieID, 2, nil)
	require.NoError(t, err)
	assert.False(t, store.has(cache.UserRatingsKey(testUserID)),
		"a committed write invalidates the user's cached rating list")
}

func TestListForUserReturnsRatings(t *testing.T) {
	fx := newRatingFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Upsert(ctx, testUserID, testMovieID, 5, strPtr("great"))
	require.NoError(t, err)

	ratings, err := fx.svc.ListForUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, testMovieID, ratings[0].MovieID)
	assert.Equal(t, 5, ratings[0].Value.Int())
}
