package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/movie-rating-service/internal/api/dto"
	"github.com/spec-kit/movie-rating-service/internal/service"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

const maxCommentLength = 1000

// RatingsHandler exposes the rating upsert and listing endpoints.
type RatingsHandler struct {
	ratings *service.RatingService
}

// NewRatingsHandler constructs handler.
func NewRatingsHandler(ratingService *service.RatingService) *RatingsHandler {
	return &RatingsHandler{ratings: ratingService}
}

// Upsert handles POST /api/ratings. The call is idempotent per
// (user_id, movie_id): repeated submissions converge to a single rating.
func (h *RatingsHandler) Upsert(c *fiber.Ctx) error {
	var req dto.CreateRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return apperrors.NewValidationError("invalid identifier format", map[string]any{"user_id": req.UserID})
	}
	movieID, err := uuid.Parse(req.MovieID)
	if err != nil {
		return apperrors.NewValidationError("invalid identifier format", map[string]any{"movie_id": req.MovieID})
	}
	if req.Comment != nil && len(*req.Comment) > maxCommentLength {
		return apperrors.NewValidationError("comment must not exceed 1000 characters", nil)
	}

	rating, err := h.ratings.Upsert(c.UserContext(), userID.String(), movieID.String(), req.Value, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromRating(rating)})
}

// ListForUser handles GET /api/ratings/user/:userId.
func (h *RatingsHandler) ListForUser(c *fiber.Ctx) error {
	userID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return err
	}
	ratings, err := h.ratings.ListForUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	items := make([]dto.RatingResponse, 0, len(ratings))
	for i := range ratings {
		items = append(items, dto.FromRating(&ratings[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
