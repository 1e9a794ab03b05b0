package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/movie-rating-service/internal/api/http"
	"github.com/spec-kit/movie-rating-service/internal/api/http/handlers"
	"github.com/spec-kit/movie-rating-service/internal/cache"
	"github.com/spec-kit/movie-rating-service/internal/config"
	"github.com/spec-kit/movie-rating-service/internal/events"
	"github.com/spec-kit/movie-rating-service/internal/observability"
	"github.com/spec-kit/movie-rating-service/internal/persistence"
	"github.com/spec-kit/movie-rating-service/internal/repository"
	"github.com/spec-kit/movie-rating-service/internal/service"
	"github.com/spec-kit/movie-rating-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	movieRepo := repository.NewMovieRepository(pool)
	ratingRepo := repository.NewRatingRepository(pool)

	store := cache.NewRedisStore(redis.Client, cfg.Cache.TTL(), logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	userService := service.NewUserService(userRepo, dispatcher)
	movieService := service.NewMovieService(movieRepo, dispatcher, store)
	ratingService := service.NewRatingService(service.RatingDependencies{
		RatingRepo: ratingRepo,
		UserRepo:   userRepo,
		MovieRepo:  movieRepo,
		Retry:      service.RetryPolicyFromConfig(cfg.Retry),
		Dispatcher: dispatcher,
		Cache:      store,
		Metrics:    metrics,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:   handlers.NewUsersHandler(userService),
		Movies:  handlers.NewMoviesHandler(movieService),
		Ratings: handlers.NewRatingsHandler(ratingService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
