package models

import "time"

// Recommendation strategies, in fallback priority order.
const (
	RecTypeSimilar         = "similar"
	RecTypeGenreBased      = "genre-based"
	RecTypeCastBased       = "cast-based"
	RecTypeUserPreference  = "user-preference"
	RecTypePopularFallback = "popular-fallback"
)

// Search interaction set names accepted by the interaction endpoints.
const (
	InteractionClicked       = "clickedMovies"
	InteractionViewedDetails = "viewedDetails"
	InteractionRequestedRecs = "requestedRecommendations"
)

// Recommendation feedback set names.
const (
	FeedbackLiked    = "liked"
	FeedbackDisliked = "disliked"
	FeedbackClicked  = "clicked"
)

// ResultMovie is the trimmed movie snapshot kept inside a search
// history record. At most 20 are stored per search.
type ResultMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterURL   string  `json:"poster_url"`
	Rating      float64 `json:"rating"`
	ReleaseDate string  `json:"release_date"`
}

// SearchInteraction holds the movie ids a visitor interacted with
// after a search. Each set is idempotent: adding an id twice keeps
// a single entry.
type SearchInteraction struct {
	ClickedMovies            []int `json:"clicked_movies"`
	ViewedDetails            []int `json:"viewed_details"`
	RequestedRecommendations []int `json:"requested_recommendations"`
}

// SearchHistoryRecord is one recorded search for a session. Records
// expire 30 days after creation.
type SearchHistoryRecord struct {
	ID           int64             `json:"id"`
	SessionID    string            `json:"session_id"`
	SearchQuery  string            `json:"search_query"`
	Filters      SearchFilters     `json:"filters"`
	TotalResults int               `json:"total_results"`
	Movies       []ResultMovie     `json:"movies,omitempty"`
	Interaction  SearchInteraction `json:"interaction"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ScoredMovie is one stored recommendation entry, annotated with the
// bounded similarity score. The score never changes ranking order.
type ScoredMovie struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	PosterURL   string   `json:"poster_url"`
	Rating      float64  `json:"rating"`
	Similarity  float64  `json:"similarity"`
	Genres      []string `json:"genres"`
	ReleaseDate string   `json:"release_date"`
}

// RecommendationFeedback holds the visitor's reaction to a stored
// recommendation list. Sets are idempotent like SearchInteraction.
type RecommendationFeedback struct {
	Liked    []int `json:"liked"`
	Disliked []int `json:"disliked"`
	Clicked  []int `json:"clicked"`
}

// RecommendationRecord is one generated recommendation list for a
// session. Records expire 7 days after creation.
type RecommendationRecord struct {
	ID                 int64                  `json:"id"`
	SessionID          string                 `json:"session_id"`
	BasedOnMovieID     int                    `json:"based_on_movie_id"`
	BasedOnMovieTitle  string                 `json:"based_on_movie_title"`
	RecommendationType string                 `json:"recommendation_type"`
	Recommendations    []ScoredMovie          `json:"recommendations,omitempty"`
	Filters            SearchFilters          `json:"filters"`
	UserFeedback       RecommendationFeedback `json:"user_feedback"`
	CreatedAt          time.Time              `json:"created_at"`
}

// GenreCount is a ranked genre inside a preference profile.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// KeywordCount is a ranked search keyword inside a preference profile.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// PreferenceProfile is derived on demand from the last 20 search
// history records of a session. It is never persisted.
type PreferenceProfile struct {
	TotalSearches      int            `json:"total_searches"`
	TopGenres          []GenreCount   `json:"top_genres"`
	TopKeywords        []KeywordCount `json:"top_keywords"`
	AverageRatingFloor float64        `json:"average_rating_floor"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// ValidSearchInteraction reports whether t names a search interaction set.
func ValidSearchInteraction(t string) bool {
	switch t {
	case InteractionClicked, InteractionViewedDetails, InteractionRequestedRecs:
		return true
	}
	return false
}

// ValidFeedbackType reports whether t names a recommendation feedback set.
func ValidFeedbackType(t string) bool {
	switch t {
	case FeedbackLiked, FeedbackDisliked, FeedbackClicked:
		return true
	}
	return false
}
