package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/movie-rating-service/internal/api/dto"
	"github.com/spec-kit/movie-rating-service/internal/service"
	apperrors "github.com/spec-kit/movie-rating-service/pkg/util"
)

// MoviesHandler exposes catalog endpoints.
type MoviesHandler struct {
	movies *service.MovieService
}

// NewMoviesHandler constructs handler.
func NewMoviesHandler(movieService *service.MovieService) *MoviesHandler {
	return &MoviesHandler{movies: movieService}
}

// Create handles POST /api/movies.
func (h *MoviesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateMovieRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" || req.Description == "" || req.Genre == "" || req.Director == "" {
		return apperrors.NewValidationError("title, description, genre, director required", nil)
	}
	releaseDate, err := time.Parse(time.DateOnly, req.ReleaseDate)
	if err != nil {
		return apperrors.NewValidationError("release_date must be YYYY-MM-DD", map[string]any{"release_date": req.ReleaseDate})
	}

	movie, err := h.movies.Create(c.UserContext(), service.MovieCreateInput{
		Title:       req.Title,
		Description: req.Description,
		ReleaseDate: releaseDate,
		Genre:       req.Genre,
		Director:    req.Director,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromMovie(movie)})
}

// Get handles GET /api/movies/:movieId.
func (h *MoviesHandler) Get(c *fiber.Ctx) error {
	movieID, err := parseUUIDParam(c, "movieId")
	if err != nil {
		return err
	}
	movie, err := h.movies.GetByID(c.UserContext(), movieID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromMovie(movie)})
}

// List handles GET /api/movies.
func (h *MoviesHandler) List(c *fiber.Ctx) error {
	page, err := parseNonNegative(c.Query("page"), 0)
	if err != nil {
		return apperrors.NewValidationError("page must be a non-negative integer", nil)
	}
	size, err := parseNonNegative(c.Query("size"), 20)
	if err != nil || size == 0 || size > 100 {
		return apperrors.NewValidationError("size must be between 1 and 100", nil)
	}

	result, err := h.movies.List(c.UserContext(), service.MovieListInput{
		Page:           page,
		Size:           size,
		SortBy:         c.Query("sort_by", "createdAt"),
		SortDescending: !strings.EqualFold(c.Query("sort_direction", "DESC"), "ASC"),
	})
	if err != nil {
		return err
	}

	items := make([]dto.MovieResponse, 0, len(result.Movies))
	for i := range result.Movies {
		items = append(items, dto.FromMovie(&result.Movies[i]))
	}
	return c.JSON(dto.PagedMoviesResponse{
		Movies:        items,
		Page:          result.Page,
		Size:          result.Size,
		TotalElements: result.TotalElements,
		TotalPages:    result.TotalPages,
		HasNext:       result.HasNext,
		HasPrevious:   result.HasPrevious,
	})
}

func parseNonNegative(val string, def int) (int, error) {
	if val == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0, apperrors.NewValidationError("invalid integer", nil)
	}
	return parsed, nil
}
