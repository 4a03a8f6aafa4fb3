package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-recommender-service/internal/models"
)

const (
	movieDetailCacheTTL = 30 * time.Minute
	popularCacheTTL     = 10 * time.Minute
	genreListCacheTTL   = 6 * time.Hour

	saveTimeout = 5 * time.Second
)

// Provider is the slice of the upstream metadata client the movie
// service depends on.
type Provider interface {
	SearchMovies(ctx context.Context, query string, page int, filters models.SearchFilters) (*models.MovieList, error)
	GetMovieDetails(ctx context.Context, movieID int) (*models.MovieDetails, error)
	DiscoverMovies(ctx context.Context, filters models.SearchFilters, page int) (*models.MovieList, error)
	GetGenres(ctx context.Context) ([]models.Genre, error)
	GetPopularMovies(ctx context.Context, page int) (*models.MovieList, error)
	GetTrendingMovies(ctx context.Context, window string, page int) (*models.MovieList, error)
	GetNowPlayingMovies(ctx context.Context, page int) (*models.MovieList, error)
	GetUpcomingMovies(ctx context.Context, page int) (*models.MovieList, error)
	GetTopRatedMovies(ctx context.Context, page int) (*models.MovieList, error)
	GetSimilarMovies(ctx context.Context, movieID, page int) (*models.MovieList, error)
	SearchPeople(ctx context.Context, query string, page int) (*models.PersonList, error)
	GetPersonDetails(ctx context.Context, personID int) (*models.PersonDetails, error)
}

// HistoryStore is the slice of the interaction store the movie service
// writes search history and interaction updates through.
type HistoryStore interface {
	SaveSearch(ctx context.Context, rec *models.SearchHistoryRecord) error
	AddSearchInteraction(ctx context.Context, sessionID, searchQuery, interactionType string, movieID int) (bool, error)
	AddRecommendationFeedback(ctx context.Context, sessionID string, basedOnMovieID int, feedbackType string, movieID int) (bool, error)
	RecentSearches(ctx context.Context, sessionID string, limit int) ([]models.SearchHistoryRecord, error)
	RecommendationHistory(ctx context.Context, sessionID string, limit int) ([]models.RecommendationRecord, error)
	Sweep(ctx context.Context) (int64, int64, error)
}

// MovieService handles search, discovery and detail lookups, logging
// search history as a side effect for later personalization.
type MovieService struct {
	provider Provider
	history  HistoryStore
	redis    *redis.Client
}

// NewMovieService creates a new MovieService. rdb may be nil to run
// without caching.
func NewMovieService(provider Provider, history HistoryStore, rdb *redis.Client) *MovieService {
	return &MovieService{provider: provider, history: history, redis: rdb}
}

// SearchMovies searches the provider and records the search into the
// session's history. History logging is best-effort and never fails
// the search itself.
func (s *MovieService) SearchMovies(ctx context.Context, query string, page int, filters models.SearchFilters, sessionID string) (*models.MovieList, error) {
	result, err := s.provider.SearchMovies(ctx, query, page, filters)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}

	if sessionID != "" {
		s.logSearch(ctx, sessionID, query, filters, result)
	}
	return result, nil
}

// GetMovieDetails returns the full movie payload, cached for 30 minutes.
func (s *MovieService) GetMovieDetails(ctx context.Context, movieID int) (*models.MovieDetails, error) {
	cacheKey := fmt.Sprintf("movie:detail:%d", movieID)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		var details models.MovieDetails
		if json.Unmarshal([]byte(cached), &details) == nil {
			slog.Debug("cache hit", "key", cacheKey)
			return &details, nil
		}
	}

	details, err := s.provider.GetMovieDetails(ctx, movieID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(details); err == nil {
		s.setCache(ctx, cacheKey, string(data), movieDetailCacheTTL)
	}
	return details, nil
}

// DiscoverMovies runs a filtered discovery query.
func (s *MovieService) DiscoverMovies(ctx context.Context, filters models.SearchFilters, page int) (*models.MovieList, error) {
	result, err := s.provider.DiscoverMovies(ctx, filters, page)
	if err != nil {
		return nil, fmt.Errorf("discover movies: %w", err)
	}
	return result, nil
}

// GetGenres returns the provider genre list, cached for 6 hours.
func (s *MovieService) GetGenres(ctx context.Context) ([]models.Genre, error) {
	cacheKey := "movies:genres"
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		var genres []models.Genre
		if json.Unmarshal([]byte(cached), &genres) == nil {
			slog.Debug("cache hit", "key", cacheKey)
			return genres, nil
		}
	}

	genres, err := s.provider.GetGenres(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(genres); err == nil {
		s.setCache(ctx, cacheKey, string(data), genreListCacheTTL)
	}
	return genres, nil
}

// GetPopularMovies returns the popularity listing, cached for 10 minutes.
func (s *MovieService) GetPopularMovies(ctx context.Context, page int) (*models.MovieList, error) {
	cacheKey := fmt.Sprintf("movies:popular:%d", page)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		var list models.MovieList
		if json.Unmarshal([]byte(cached), &list) == nil {
			slog.Debug("cache hit", "key", cacheKey)
			return &list, nil
		}
	}

	list, err := s.provider.GetPopularMovies(ctx, page)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(list); err == nil {
		s.setCache(ctx, cacheKey, string(data), popularCacheTTL)
	}
	return list, nil
}

// GetTrendingMovies returns the trending listing for a time window.
func (s *MovieService) GetTrendingMovies(ctx context.Context, window string, page int) (*models.MovieList, error) {
	return s.provider.GetTrendingMovies(ctx, window, page)
}

// GetNowPlayingMovies returns movies currently in theaters.
func (s *MovieService) GetNowPlayingMovies(ctx context.Context, page int) (*models.MovieList, error) {
	return s.provider.GetNowPlayingMovies(ctx, page)
}

// GetUpcomingMovies returns upcoming releases.
func (s *MovieService) GetUpcomingMovies(ctx context.Context, page int) (*models.MovieList, error) {
	return s.provider.GetUpcomingMovies(ctx, page)
}

// GetTopRatedMovies returns the top rated listing.
func (s *MovieService) GetTopRatedMovies(ctx context.Context, page int) (*models.MovieList, error) {
	return s.provider.GetTopRatedMovies(ctx, page)
}

// GetSimilarMovies returns the provider's similar list for a movie.
func (s *MovieService) GetSimilarMovies(ctx context.Context, movieID, page int) (*models.MovieList, error) {
	return s.provider.GetSimilarMovies(ctx, movieID, page)
}

// SearchPeople searches people by name.
func (s *MovieService) SearchPeople(ctx context.Context, query string, page int) (*models.PersonList, error) {
	return s.provider.SearchPeople(ctx, query, page)
}

// GetPersonDetails returns the full person payload.
func (s *MovieService) GetPersonDetails(ctx context.Context, personID int) (*models.PersonDetails, error) {
	return s.provider.GetPersonDetails(ctx, personID)
}

// RecordInteraction appends a movie id to an interaction set of the
// session's latest matching search. Best-effort: store failures are
// swallowed and reported as false.
func (s *MovieService) RecordInteraction(ctx context.Context, sessionID, searchQuery, interactionType string, movieID int) bool {
	ok, err := s.history.AddSearchInteraction(ctx, sessionID, searchQuery, interactionType, movieID)
	if err != nil {
		slog.Warn("failed to record search interaction",
			"session_id", sessionID, "type", interactionType, "error", err)
		return false
	}
	return ok
}

// RecordFeedback appends a movie id to a feedback set of the session's
// latest recommendation for the seed movie. Best-effort like
// RecordInteraction.
func (s *MovieService) RecordFeedback(ctx context.Context, sessionID string, basedOnMovieID int, feedbackType string, movieID int) bool {
	ok, err := s.history.AddRecommendationFeedback(ctx, sessionID, basedOnMovieID, feedbackType, movieID)
	if err != nil {
		slog.Warn("failed to record recommendation feedback",
			"session_id", sessionID, "type", feedbackType, "error", err)
		return false
	}
	return ok
}

// SearchHistory returns the session's recent searches.
func (s *MovieService) SearchHistory(ctx context.Context, sessionID string, limit int) ([]models.SearchHistoryRecord, error) {
	return s.history.RecentSearches(ctx, sessionID, limit)
}

// RecommendationHistory returns the session's recent recommendation
// records without their movie payloads.
func (s *MovieService) RecommendationHistory(ctx context.Context, sessionID string, limit int) ([]models.RecommendationRecord, error) {
	return s.history.RecommendationHistory(ctx, sessionID, limit)
}

// logSearch persists the search record asynchronously.
func (s *MovieService) logSearch(ctx context.Context, sessionID, query string, filters models.SearchFilters, result *models.MovieList) {
	movies := make([]models.ResultMovie, 0, len(result.Movies))
	for _, m := range result.Movies {
		movies = append(movies, models.ResultMovie{
			ID:          m.ID,
			Title:       m.Title,
			PosterURL:   m.PosterURL,
			Rating:      m.Rating,
			ReleaseDate: m.ReleaseDate,
		})
	}
	rec := &models.SearchHistoryRecord{
		SessionID:    sessionID,
		SearchQuery:  query,
		Filters:      filters,
		TotalResults: result.TotalResults,
		Movies:       movies,
	}

	go func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := s.history.SaveSearch(saveCtx, rec); err != nil {
			slog.Warn("failed to save search history", "session_id", sessionID, "error", err)
		}
	}()
}

// ---- Redis Helpers ----

func (s *MovieService) getFromCache(ctx context.Context, key string) (string, error) {
	if s.redis == nil {
		return "", fmt.Errorf("redis not available")
	}
	return s.redis.Get(ctx, key).Result()
}

func (s *MovieService) setCache(ctx context.Context, key, value string, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}
