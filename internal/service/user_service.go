package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/movie-rating-service/internal/domain"
	"github.com/spec-kit/movie-rating-service/internal/events"
	"github.com/spec-kit/movie-rating-service/internal/repository"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// UserService coordinates user registration and lookup.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher) *UserService {
	return &UserService{users: users, dispatcher: dispatcher}
}

// UserRegisterInput describes registration payload.
type UserRegisterInput struct {
	Email    string
	Username string
	FullName string
}

// Register creates a user with a generated identifier. Email and username
// must be unique across the catalog.
func (s *UserService) Register(ctx context.Context, input UserRegisterInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	username := strings.TrimSpace(input.Username)
	fullName := strings.TrimSpace(input.FullName)

	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidationError("invalid email format", map[string]any{"email": input.Email})
	}

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if taken {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}
	taken, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if taken {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	}

	user := &domain.User{
		ID:       uuid.NewString(),
		Email:    email,
		Username: username,
		FullName: fullName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type: events.EventUserRegistered,
		Payload: events.UserRegisteredPayload{
			UserID:   user.ID,
			Username: user.Username,
		},
	})
	return user, nil
}

// GetByID fetches a user by identifier.
func (s *UserService) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) publishEvent(ctx context.Context, event events.Event) {
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
