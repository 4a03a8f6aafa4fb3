package repository

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-service/internal/models"
)

func newMockRepo(t *testing.T) (*HistoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHistoryRepository(db), mock
}

// cutoffWithin matches a timestamp argument that lies the given window
// in the past, so tests pin the actual matching and retention windows
// rather than accepting any cutoff.
type cutoffWithin struct {
	window time.Duration
}

func (c cutoffWithin) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	if !ok {
		return false
	}
	diff := ts.Sub(time.Now().Add(-c.window))
	if diff < 0 {
		diff = -diff
	}
	return diff < 2*time.Second
}

func TestSaveSearchTrimsQueryAndMovies(t *testing.T) {
	repo, mock := newMockRepo(t)

	longQuery := strings.Repeat("q", 150)
	movies := make([]models.ResultMovie, 30)
	for i := range movies {
		movies[i] = models.ResultMovie{ID: i + 1, Title: "movie"}
	}

	mock.ExpectQuery(`INSERT INTO search_history`).
		WithArgs("session-1", longQuery[:100], sqlmock.AnyArg(), 30, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), time.Now()))

	rec := &models.SearchHistoryRecord{
		SessionID:    "session-1",
		SearchQuery:  longQuery,
		TotalResults: 30,
		Movies:       movies,
	}
	require.NoError(t, repo.SaveSearch(context.Background(), rec))
	assert.Equal(t, int64(7), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSearchTruncatesOnRuneBoundary(t *testing.T) {
	repo, mock := newMockRepo(t)

	// 150 three-byte runes; a byte cut at 100 would split one and send
	// invalid UTF-8 to the store.
	longQuery := strings.Repeat("€", 150)
	want := strings.Repeat("€", 100)

	mock.ExpectQuery(`INSERT INTO search_history`).
		WithArgs("session-1", want, sqlmock.AnyArg(), 150, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(8), time.Now()))

	rec := &models.SearchHistoryRecord{
		SessionID:    "session-1",
		SearchQuery:  longQuery,
		TotalResults: 150,
	}
	require.NoError(t, repo.SaveSearch(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecommendation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO recommendations`).
		WithArgs("session-1", 550, "Fight Club", models.RecTypeGenreBased, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))

	rec := &models.RecommendationRecord{
		SessionID:          "session-1",
		BasedOnMovieID:     550,
		BasedOnMovieTitle:  "Fight Club",
		RecommendationType: models.RecTypeGenreBased,
		Recommendations:    []models.ScoredMovie{{ID: 601, Title: "movie", Similarity: 0.5}},
	}
	require.NoError(t, repo.SaveRecommendation(context.Background(), rec))
	assert.Equal(t, int64(3), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSearchInteractionUpdatesMatchingRecord(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE search_history`).
		WithArgs("session-1", "alien", cutoffWithin{time.Hour}, 550).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AddSearchInteraction(context.Background(), "session-1", "alien", models.InteractionClicked, 550)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSearchInteractionReturnsFalseWhenNothingMatches(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE search_history`).
		WithArgs("session-1", "alien", cutoffWithin{time.Hour}, 550).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.AddSearchInteraction(context.Background(), "session-1", "alien", models.InteractionViewedDetails, 550)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSearchInteractionRejectsUnknownType(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.AddSearchInteraction(context.Background(), "session-1", "alien", "droppedMovies", 550)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown interaction type")
}

func TestAddRecommendationFeedback(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE recommendations`).
		WithArgs("session-1", 550, cutoffWithin{24 * time.Hour}, 601).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AddRecommendationFeedback(context.Background(), "session-1", 550, models.FeedbackLiked, 601)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRecommendationFeedbackRejectsUnknownType(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.AddRecommendationFeedback(context.Background(), "session-1", 550, "loved", 601)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feedback type")
}

func TestRecentSearchesScansInteractionSets(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "search_query", "filters", "total_results",
		"clicked_movies", "viewed_details", "requested_recommendations", "created_at",
	}).AddRow(
		int64(1), "session-1", "alien", []byte(`{"genre_names":["Horror"],"min_rating":7}`), 12,
		[]byte("{550,601}"), []byte("{550}"), []byte("{}"), now,
	)

	mock.ExpectQuery(`SELECT id, session_id, search_query`).
		WithArgs("session-1", cutoffWithin{30 * 24 * time.Hour}, 20).
		WillReturnRows(rows)

	records, err := repo.RecentSearches(context.Background(), "session-1", 20)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "alien", rec.SearchQuery)
	assert.Equal(t, []string{"Horror"}, rec.Filters.GenreNames)
	assert.Equal(t, 7.0, rec.Filters.MinRating)
	assert.Equal(t, []int{550, 601}, rec.Interaction.ClickedMovies)
	assert.Equal(t, []int{550}, rec.Interaction.ViewedDetails)
	assert.Empty(t, rec.Interaction.RequestedRecommendations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationHistoryOmitsPayloads(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "based_on_movie_id", "based_on_movie_title",
		"recommendation_type", "filters", "liked", "disliked", "clicked", "created_at",
	}).AddRow(
		int64(2), "session-1", 550, "Fight Club",
		models.RecTypeSimilar, []byte(`{}`), []byte("{601}"), []byte("{}"), []byte("{601,602}"), now,
	)

	mock.ExpectQuery(`SELECT id, session_id, based_on_movie_id`).
		WithArgs("session-1", cutoffWithin{7 * 24 * time.Hour}, 10).
		WillReturnRows(rows)

	records, err := repo.RecommendationHistory(context.Background(), "session-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 550, rec.BasedOnMovieID)
	assert.Equal(t, models.RecTypeSimilar, rec.RecommendationType)
	assert.Empty(t, rec.Recommendations)
	assert.Equal(t, []int{601}, rec.UserFeedback.Liked)
	assert.Equal(t, []int{601, 602}, rec.UserFeedback.Clicked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepDeletesBothClasses(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM search_history`).
		WithArgs(cutoffWithin{30 * 24 * time.Hour}).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM recommendations`).
		WithArgs(cutoffWithin{7 * 24 * time.Hour}).
		WillReturnResult(sqlmock.NewResult(0, 2))

	searches, recs, err := repo.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), searches)
	assert.Equal(t, int64(2), recs)
	require.NoError(t, mock.ExpectationsWereMet())
}
