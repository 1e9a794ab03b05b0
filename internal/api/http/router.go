package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/movie-rating-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Users   *handlers.UsersHandler
	Movies  *handlers.MoviesHandler
	Ratings *handlers.RatingsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	api.Post("/users", cfg.Users.Register)
	api.Get("/users/:userId", cfg.Users.Get)

	api.Post("/movies", cfg.Movies.Create)
	api.Get("/movies/:movieId", cfg.Movies.Get)
	api.Get("/movies", cfg.Movies.List)

	api.Post("/ratings", cfg.Ratings.Upsert)
	api.Get("/ratings/user/:userId", cfg.Ratings.ListForUser)
}
