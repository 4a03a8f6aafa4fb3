package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"movie-recommender-service/internal/config"
	"movie-recommender-service/internal/database"
	"movie-recommender-service/internal/handler"
	"movie-recommender-service/internal/preference"
	"movie-recommender-service/internal/recommend"
	"movie-recommender-service/internal/repository"
	"movie-recommender-service/internal/service"
	"movie-recommender-service/internal/tmdb"
)

const retentionSweepInterval = time.Hour

func main() {
	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis (non-fatal if unavailable)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running without cache", "error", err)
	}

	// Initialize the upstream client. A missing API key is a
	// deployment error and refuses startup.
	tmdbClient, err := tmdb.NewClient(
		cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.ImageBaseURL,
		cfg.TMDB.RequestTimeout,
		tmdb.RetryPolicy{MaxAttempts: cfg.TMDB.MaxRetries, BackoffUnit: cfg.TMDB.BackoffUnit},
	)
	if err != nil {
		slog.Error("failed to initialize TMDB client", "error", err)
		os.Exit(1)
	}

	// Initialize layers
	historyRepo := repository.NewHistoryRepository(db)
	aggregator := preference.NewAggregator(historyRepo)
	engine := recommend.NewEngine(tmdbClient, aggregator, historyRepo)
	svc := service.NewMovieService(tmdbClient, historyRepo, rdb)
	movieHandler := handler.NewMovieHandler(svc)
	recHandler := handler.NewRecommendationHandler(engine)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Movie Recommender Service",
		ServerHeader: "Movie-Recommender-Service",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.ErrorResponse{Error: err.Error()})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// Swagger docs
	swaggerYAML, err := os.ReadFile("docs/swagger.yaml")
	if err != nil {
		slog.Warn("swagger.yaml not found, swagger UI will be unavailable", "error", err)
	} else {
		handler.RegisterSwagger(app, "Movie Recommender Service", swaggerYAML)
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/health", movieHandler.Health)
	api.Get("/movies/search", movieHandler.SearchMovies)
	api.Get("/movies/popular", movieHandler.GetPopularMovies)
	api.Get("/movies/trending", movieHandler.GetTrendingMovies)
	api.Get("/movies/now-playing", movieHandler.GetNowPlayingMovies)
	api.Get("/movies/upcoming", movieHandler.GetUpcomingMovies)
	api.Get("/movies/top-rated", movieHandler.GetTopRatedMovies)
	api.Get("/movies/genres", movieHandler.GetGenres)
	api.Get("/movies/discover", movieHandler.DiscoverMovies)
	api.Get("/movies/:id", movieHandler.GetMovieDetails)
	api.Get("/movies/:id/similar", movieHandler.GetSimilarMovies)
	api.Get("/movies/:id/recommendations", recHandler.GetRecommendations)
	api.Get("/people/search", movieHandler.SearchPeople)
	api.Get("/people/:id", movieHandler.GetPersonDetails)
	api.Post("/interactions", movieHandler.RecordInteraction)
	api.Post("/recommendations/feedback", movieHandler.RecordFeedback)
	api.Get("/history/searches", movieHandler.GetSearchHistory)
	api.Get("/history/recommendations", movieHandler.GetRecommendationHistory)

	// Periodic retention sweep for the TTL-bearing collections
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runRetentionSweep(sweepCtx, historyRepo)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down movie recommender service...")
		stopSweep()
		_ = app.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting movie recommender service", "addr", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runRetentionSweep deletes expired search history and recommendation
// records on a fixed interval. Reads already exclude expired rows, so
// the sweep only reclaims space.
func runRetentionSweep(ctx context.Context, repo *repository.HistoryRepository) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			searches, recs, err := repo.Sweep(ctx)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if searches > 0 || recs > 0 {
				slog.Info("retention sweep completed", "search_history_deleted", searches, "recommendations_deleted", recs)
			}
		}
	}
}
