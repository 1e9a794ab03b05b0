package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/movie-rating-service/internal/api/dto"
	"github.com/spec-kit/movie-rating-service/internal/service"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

// UsersHandler exposes user registration and lookup endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Register handles POST /api/users.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Username == "" || req.FullName == "" {
		return apperrors.NewValidationError("email, username, full_name required", nil)
	}
	if len(req.Username) < 3 || len(req.Username) > 50 {
		return apperrors.NewValidationError("username must be between 3 and 50 characters", nil)
	}
	if len(req.FullName) < 2 || len(req.FullName) > 100 {
		return apperrors.NewValidationError("full_name must be between 2 and 100 characters", nil)
	}

	user, err := h.users.Register(c.UserContext(), service.UserRegisterInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromUser(user)})
}

// Get handles GET /api/users/:userId.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return err
	}
	user, err := h.users.GetByID(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromUser(user)})
}

func parseUUIDParam(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.NewValidationError("invalid identifier format", map[string]any{name: raw})
	}
	return parsed.String(), nil
}
