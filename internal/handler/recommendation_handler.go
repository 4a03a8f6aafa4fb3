package handler

import (
	"github.com/gofiber/fiber/v3"

	"movie-recommender-service/internal/recommend"
	"movie-recommender-service/internal/tmdb"
)

// RecommendationHandler serves the tiered recommendation endpoint.
type RecommendationHandler struct {
	engine *recommend.Engine
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(engine *recommend.Engine) *RecommendationHandler {
	return &RecommendationHandler{engine: engine}
}

// GetRecommendations returns a ranked recommendation list for a seed
// movie, optionally personalized from the session's search history.
// GET /api/v1/movies/:id/recommendations?page=&session_id=
func (h *RecommendationHandler) GetRecommendations(c fiber.Ctx) error {
	seedID, ok := movieIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "valid movie ID is required"})
	}

	result, err := h.engine.Recommend(c.Context(), seedID, pageParam(c), c.Query("session_id"))
	if err != nil {
		if tmdb.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "movie not found"})
		}
		return upstreamError(c, "failed to get recommendations", err)
	}
	return c.JSON(result)
}
