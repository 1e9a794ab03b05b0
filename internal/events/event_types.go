package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventMovieCreated   EventType = "movie_created"
	EventRatingCreated  EventType = "rating_created"
	EventRatingUpdated  EventType = "rating_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// MovieCreatedPayload payload.
type MovieCreatedPayload struct {
	MovieID string `json:"movie_id"`
	Title   string `json:"title"`
	Genre   string `json:"genre"`
}

// RatingUpsertedPayload is shared by rating_created and rating_updated.
type RatingUpsertedPayload struct {
	UserID  string `json:"user_id"`
	MovieID string `json:"movie_id"`
	Value   int    `json:"value"`
}
