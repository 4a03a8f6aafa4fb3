package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"movie-recommender-service/internal/models"
	"movie-recommender-service/internal/service"
	"movie-recommender-service/internal/tmdb"
)

// MovieHandler handles HTTP requests for movies, people and the
// session interaction endpoints.
type MovieHandler struct {
	svc *service.MovieService
}

// NewMovieHandler creates a new MovieHandler.
func NewMovieHandler(svc *service.MovieService) *MovieHandler {
	return &MovieHandler{svc: svc}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchResponse wraps a search result with the session id so browsers
// without one can persist the minted id for later personalization.
type SearchResponse struct {
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	Result    *models.MovieList `json:"result"`
}

// Health returns service health status.
func (h *MovieHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "movie-recommender-service",
	})
}

// SearchMovies searches movies by title.
// GET /api/v1/movies/search?q=&page=&year=&region=&include_adult=&session_id=
func (h *MovieHandler) SearchMovies(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "search query is required"})
	}

	filters := models.SearchFilters{
		Year:         fiber.Query(c, "year", 0),
		Region:       c.Query("region"),
		IncludeAdult: fiber.Query(c, "include_adult", false),
	}
	page := pageParam(c)

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := h.svc.SearchMovies(c.Context(), query, page, filters, sessionID)
	if err != nil {
		return upstreamError(c, "failed to search movies", err)
	}

	return c.JSON(SearchResponse{SessionID: sessionID, Query: query, Result: result})
}

// GetMovieDetails returns the full payload for one movie.
// GET /api/v1/movies/:id
func (h *MovieHandler) GetMovieDetails(c fiber.Ctx) error {
	movieID, ok := movieIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "valid movie ID is required"})
	}

	details, err := h.svc.GetMovieDetails(c.Context(), movieID)
	if err != nil {
		if tmdb.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "movie not found"})
		}
		return upstreamError(c, "failed to get movie details", err)
	}
	return c.JSON(details)
}

// DiscoverMovies runs a filtered discovery query.
// GET /api/v1/movies/discover
func (h *MovieHandler) DiscoverMovies(c fiber.Ctx) error {
	filters := models.SearchFilters{
		Genres:    parseIntList(c.Query("genres")),
		Year:      fiber.Query(c, "year", 0),
		MinRating: fiber.Query(c, "min_rating", 0.0),
		MaxRating: fiber.Query(c, "max_rating", 0.0),
		MinVotes:  fiber.Query(c, "min_votes", 100),
		Cast:      parseIntList(c.Query("cast")),
		Keywords:  parseIntList(c.Query("keywords")),
		SortBy:    c.Query("sort_by"),
	}

	result, err := h.svc.DiscoverMovies(c.Context(), filters, pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to discover movies", err)
	}
	return c.JSON(result)
}

// GetGenres returns the provider genre list.
// GET /api/v1/movies/genres
func (h *MovieHandler) GetGenres(c fiber.Ctx) error {
	genres, err := h.svc.GetGenres(c.Context())
	if err != nil {
		return upstreamError(c, "failed to get genres", err)
	}
	return c.JSON(genres)
}

// GetPopularMovies returns the global popularity listing.
// GET /api/v1/movies/popular
func (h *MovieHandler) GetPopularMovies(c fiber.Ctx) error {
	result, err := h.svc.GetPopularMovies(c.Context(), pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to get popular movies", err)
	}
	return c.JSON(result)
}

// GetTrendingMovies returns trending movies for a time window.
// GET /api/v1/movies/trending?window=day|week
func (h *MovieHandler) GetTrendingMovies(c fiber.Ctx) error {
	result, err := h.svc.GetTrendingMovies(c.Context(), c.Query("window", "day"), pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to get trending movies", err)
	}
	return c.JSON(result)
}

// GetNowPlayingMovies returns movies currently in theaters.
// GET /api/v1/movies/now-playing
func (h *MovieHandler) GetNowPlayingMovies(c fiber.Ctx) error {
	result, err := h.svc.GetNowPlayingMovies(c.Context(), pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to get now playing movies", err)
	}
	return c.JSON(result)
}

// GetUpcomingMovies returns upcoming releases.
// GET /api/v1/movies/upcoming
func (h *MovieHandler) GetUpcomingMovies(c fiber.Ctx) error {
	result, err := h.svc.GetUpcomingMovies(c.Context(), pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to get upcoming movies", err)
	}
	return c.JSON(result)
}

// GetTopRatedMovies returns the top rated listing.
// GET /api/v1/movies/top-rated
func (h *MovieHandler) GetTopRatedMovies(c fiber.Ctx) error {
	result, err := h.svc.GetTopRatedMovies(c.Context(), pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to get top rated movies", err)
	}
	return c.JSON(result)
}

// GetSimilarMovies returns the provider's similar list for a movie.
// GET /api/v1/movies/:id/similar
func (h *MovieHandler) GetSimilarMovies(c fiber.Ctx) error {
	movieID, ok := movieIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "valid movie ID is required"})
	}

	result, err := h.svc.GetSimilarMovies(c.Context(), movieID, pageParam(c))
	if err != nil {
		if tmdb.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "movie not found"})
		}
		return upstreamError(c, "failed to get similar movies", err)
	}
	return c.JSON(result)
}

// SearchPeople searches actors and crew by name.
// GET /api/v1/people/search?q=
func (h *MovieHandler) SearchPeople(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "search query is required"})
	}

	result, err := h.svc.SearchPeople(c.Context(), query, pageParam(c))
	if err != nil {
		return upstreamError(c, "failed to search people", err)
	}
	return c.JSON(result)
}

// GetPersonDetails returns the full payload for one person.
// GET /api/v1/people/:id
func (h *MovieHandler) GetPersonDetails(c fiber.Ctx) error {
	personID := fiber.Params[int](c, "id")
	if personID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "valid person ID is required"})
	}

	details, err := h.svc.GetPersonDetails(c.Context(), personID)
	if err != nil {
		if tmdb.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "person not found"})
		}
		return upstreamError(c, "failed to get person details", err)
	}
	return c.JSON(details)
}

// InteractionRequest is the body for recording a search interaction.
type InteractionRequest struct {
	SessionID       string `json:"session_id"`
	SearchQuery     string `json:"search_query"`
	InteractionType string `json:"interaction_type"`
	MovieID         int    `json:"movie_id"`
}

// RecordInteraction appends a movie id to an interaction set of the
// session's latest matching search. Always best-effort: the response
// reports whether a record was updated, never an error.
// POST /api/v1/interactions
func (h *MovieHandler) RecordInteraction(c fiber.Ctx) error {
	var req InteractionRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.SessionID == "" || req.SearchQuery == "" || req.MovieID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id, search_query and movie_id are required"})
	}
	if !models.ValidSearchInteraction(req.InteractionType) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid interaction type"})
	}

	recorded := h.svc.RecordInteraction(c.Context(), req.SessionID, req.SearchQuery, req.InteractionType, req.MovieID)
	return c.JSON(fiber.Map{"recorded": recorded})
}

// FeedbackRequest is the body for recording recommendation feedback.
type FeedbackRequest struct {
	SessionID      string `json:"session_id"`
	BasedOnMovieID int    `json:"based_on_movie_id"`
	FeedbackType   string `json:"feedback_type"`
	MovieID        int    `json:"movie_id"`
}

// RecordFeedback appends a movie id to a feedback set of the session's
// latest recommendation for the seed movie.
// POST /api/v1/recommendations/feedback
func (h *MovieHandler) RecordFeedback(c fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.SessionID == "" || req.BasedOnMovieID <= 0 || req.MovieID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id, based_on_movie_id and movie_id are required"})
	}
	if !models.ValidFeedbackType(req.FeedbackType) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid feedback type"})
	}

	recorded := h.svc.RecordFeedback(c.Context(), req.SessionID, req.BasedOnMovieID, req.FeedbackType, req.MovieID)
	return c.JSON(fiber.Map{"recorded": recorded})
}

// GetSearchHistory returns the session's recent searches.
// GET /api/v1/history/searches?session_id=&limit=
func (h *MovieHandler) GetSearchHistory(c fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id is required"})
	}

	records, err := h.svc.SearchHistory(c.Context(), sessionID, limitParam(c))
	if err != nil {
		slog.Error("failed to get search history", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get search history"})
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "searches": records})
}

// GetRecommendationHistory returns the session's recent recommendation
// records.
// GET /api/v1/history/recommendations?session_id=&limit=
func (h *MovieHandler) GetRecommendationHistory(c fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id is required"})
	}

	records, err := h.svc.RecommendationHistory(c.Context(), sessionID, limitParam(c))
	if err != nil {
		slog.Error("failed to get recommendation history", "session_id", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get recommendation history"})
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "recommendations": records})
}

// ---- Helpers ----

func pageParam(c fiber.Ctx) int {
	page := fiber.Query(c, "page", 1)
	if page < 1 {
		page = 1
	}
	return page
}

func limitParam(c fiber.Ctx) int {
	limit := fiber.Query(c, "limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return limit
}

func movieIDParam(c fiber.Ctx) (int, bool) {
	idStr := c.Params("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIntList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// upstreamError maps upstream failure kinds onto response codes.
func upstreamError(c fiber.Ctx, msg string, err error) error {
	var ue *tmdb.Error
	status := fiber.StatusInternalServerError
	if errors.As(err, &ue) {
		switch ue.Kind {
		case tmdb.KindNotFound:
			status = fiber.StatusNotFound
		case tmdb.KindRateLimited:
			status = fiber.StatusTooManyRequests
		case tmdb.KindTimeout:
			status = fiber.StatusGatewayTimeout
		case tmdb.KindConnectionUnstable, tmdb.KindServerError:
			status = fiber.StatusBadGateway
		}
	}
	slog.Error(msg, "status", status, "error", err)
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}
