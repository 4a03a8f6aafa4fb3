package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"movie-recommender-service/internal/models"
)

// Retention and matching windows. Changing these silently alters which
// record receives an interaction update, so they mirror the product
// behavior exactly: search interactions land on the latest matching
// search within 1 hour, recommendation feedback within 24 hours.
const (
	SearchHistoryTTL  = 30 * 24 * time.Hour
	RecommendationTTL = 7 * 24 * time.Hour

	searchInteractionWindow = time.Hour
	feedbackWindow          = 24 * time.Hour

	maxStoredMovies = 20
	maxQueryLength  = 100
)

// interactionColumns whitelists the search interaction sets to their
// backing columns.
var interactionColumns = map[string]string{
	models.InteractionClicked:       "clicked_movies",
	models.InteractionViewedDetails: "viewed_details",
	models.InteractionRequestedRecs: "requested_recommendations",
}

// feedbackColumns whitelists the recommendation feedback sets.
var feedbackColumns = map[string]string{
	models.FeedbackLiked:    "liked",
	models.FeedbackDisliked: "disliked",
	models.FeedbackClicked:  "clicked",
}

// HistoryRepository persists search history and recommendation records
// with their retention policies.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// SaveSearch stores one search record. The result snapshot is trimmed
// to 20 movies and the query to 100 characters.
func (r *HistoryRepository) SaveSearch(ctx context.Context, rec *models.SearchHistoryRecord) error {
	query := truncateRunes(rec.SearchQuery, maxQueryLength)
	movies := rec.Movies
	if len(movies) > maxStoredMovies {
		movies = movies[:maxStoredMovies]
	}

	filtersJSON, err := json.Marshal(rec.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	moviesJSON, err := json.Marshal(movies)
	if err != nil {
		return fmt.Errorf("marshal result movies: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO search_history (session_id, search_query, filters, total_results, result_movies)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rec.SessionID, query, filtersJSON, rec.TotalResults, moviesJSON).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search history: %w", err)
	}
	return nil
}

// SaveRecommendation stores one generated recommendation list, trimmed
// to 20 entries.
func (r *HistoryRepository) SaveRecommendation(ctx context.Context, rec *models.RecommendationRecord) error {
	entries := rec.Recommendations
	if len(entries) > maxStoredMovies {
		entries = entries[:maxStoredMovies]
	}

	filtersJSON, err := json.Marshal(rec.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO recommendations (session_id, based_on_movie_id, based_on_movie_title, recommendation_type, recommendations, filters)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, rec.SessionID, rec.BasedOnMovieID, rec.BasedOnMovieTitle, rec.RecommendationType,
		entriesJSON, filtersJSON).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// AddSearchInteraction appends a movie id to one interaction set of
// the most recent search matching (session, query) within the last
// hour. The append is idempotent: an id already in the set is kept
// once. Returns false when no record matches.
func (r *HistoryRepository) AddSearchInteraction(ctx context.Context, sessionID, searchQuery, interactionType string, movieID int) (bool, error) {
	col, ok := interactionColumns[interactionType]
	if !ok {
		return false, fmt.Errorf("unknown interaction type %q", interactionType)
	}

	cutoff := time.Now().Add(-searchInteractionWindow)
	query := fmt.Sprintf(`
		UPDATE search_history
		SET %[1]s = CASE WHEN $4 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $4) END
		WHERE id = (
			SELECT id FROM search_history
			WHERE session_id = $1 AND search_query = $2 AND created_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, col)

	res, err := r.db.ExecContext(ctx, query, sessionID, searchQuery, cutoff, movieID)
	if err != nil {
		return false, fmt.Errorf("update search interaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddRecommendationFeedback appends a movie id to one feedback set of
// the most recent recommendation for (session, seed movie) within the
// last 24 hours. Same idempotent no-op semantics as search interactions.
func (r *HistoryRepository) AddRecommendationFeedback(ctx context.Context, sessionID string, basedOnMovieID int, feedbackType string, movieID int) (bool, error) {
	col, ok := feedbackColumns[feedbackType]
	if !ok {
		return false, fmt.Errorf("unknown feedback type %q", feedbackType)
	}

	cutoff := time.Now().Add(-feedbackWindow)
	query := fmt.Sprintf(`
		UPDATE recommendations
		SET %[1]s = CASE WHEN $4 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $4) END
		WHERE id = (
			SELECT id FROM recommendations
			WHERE session_id = $1 AND based_on_movie_id = $2 AND created_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, col)

	res, err := r.db.ExecContext(ctx, query, sessionID, basedOnMovieID, cutoff, movieID)
	if err != nil {
		return false, fmt.Errorf("update recommendation feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecentSearches returns up to limit search records for a session,
// newest first. Records past their 30-day retention are excluded even
// if a sweep has not reclaimed them yet.
func (r *HistoryRepository) RecentSearches(ctx context.Context, sessionID string, limit int) ([]models.SearchHistoryRecord, error) {
	if limit <= 0 {
		limit = maxStoredMovies
	}
	cutoff := time.Now().Add(-SearchHistoryTTL)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, search_query, filters, total_results,
			clicked_movies, viewed_details, requested_recommendations, created_at
		FROM search_history
		WHERE session_id = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, sessionID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent searches: %w", err)
	}
	defer rows.Close()

	records := make([]models.SearchHistoryRecord, 0, limit)
	for rows.Next() {
		var rec models.SearchHistoryRecord
		var filtersJSON []byte
		var clicked, viewed, requested pq.Int64Array
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.SearchQuery, &filtersJSON, &rec.TotalResults,
			&clicked, &viewed, &requested, &rec.CreatedAt,
		); err != nil {
			slog.Error("failed to scan search history row", "error", err)
			continue
		}
		if err := json.Unmarshal(filtersJSON, &rec.Filters); err != nil {
			slog.Error("failed to decode stored filters", "id", rec.ID, "error", err)
		}
		rec.Interaction = models.SearchInteraction{
			ClickedMovies:            toIntSlice(clicked),
			ViewedDetails:            toIntSlice(viewed),
			RequestedRecommendations: toIntSlice(requested),
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecommendationHistory returns up to limit recommendation records for
// a session without their movie payloads, newest first.
func (r *HistoryRepository) RecommendationHistory(ctx context.Context, sessionID string, limit int) ([]models.RecommendationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().Add(-RecommendationTTL)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, based_on_movie_id, based_on_movie_title,
			recommendation_type, filters, liked, disliked, clicked, created_at
		FROM recommendations
		WHERE session_id = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, sessionID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query recommendation history: %w", err)
	}
	defer rows.Close()

	records := make([]models.RecommendationRecord, 0, limit)
	for rows.Next() {
		var rec models.RecommendationRecord
		var filtersJSON []byte
		var liked, disliked, clicked pq.Int64Array
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.BasedOnMovieID, &rec.BasedOnMovieTitle,
			&rec.RecommendationType, &filtersJSON, &liked, &disliked, &clicked, &rec.CreatedAt,
		); err != nil {
			slog.Error("failed to scan recommendation row", "error", err)
			continue
		}
		if err := json.Unmarshal(filtersJSON, &rec.Filters); err != nil {
			slog.Error("failed to decode stored filters", "id", rec.ID, "error", err)
		}
		rec.UserFeedback = models.RecommendationFeedback{
			Liked:    toIntSlice(liked),
			Disliked: toIntSlice(disliked),
			Clicked:  toIntSlice(clicked),
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Sweep deletes records strictly older than their class TTL: 30 days
// for search history, 7 days for recommendations. Safe to run
// concurrently with reads and writes.
func (r *HistoryRepository) Sweep(ctx context.Context) (searches, recs int64, err error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE created_at < $1`,
		time.Now().Add(-SearchHistoryTTL))
	if err != nil {
		return 0, 0, fmt.Errorf("sweep search history: %w", err)
	}
	searches, _ = res.RowsAffected()

	res, err = r.db.ExecContext(ctx,
		`DELETE FROM recommendations WHERE created_at < $1`,
		time.Now().Add(-RecommendationTTL))
	if err != nil {
		return searches, 0, fmt.Errorf("sweep recommendations: %w", err)
	}
	recs, _ = res.RowsAffected()

	return searches, recs, nil
}

// truncateRunes cuts s to at most n characters. The column cap counts
// characters, and a byte cut could split a multibyte rune into a
// sequence Postgres rejects as invalid UTF-8.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func toIntSlice(arr pq.Int64Array) []int {
	out := make([]int, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}
	return out
}
