package recommend

import (
	"context"
	"log/slog"
	"time"

	"movie-recommender-service/internal/models"
	"movie-recommender-service/internal/tmdb"
)

const (
	// Discovery tiers only surface reasonably vetted movies.
	discoveryMinRating = 6.0
	discoveryMinVotes  = 100
	// Using more seed genres narrows discovery too far.
	maxSeedGenres = 2

	recordTimeout = 5 * time.Second
)

// Upstream is the slice of the metadata provider client the engine
// depends on. Narrow so tests can substitute a fake.
type Upstream interface {
	GetMovieDetails(ctx context.Context, movieID int) (*models.MovieDetails, error)
	DiscoverMovies(ctx context.Context, filters models.SearchFilters, page int) (*models.MovieList, error)
	GetPopularMovies(ctx context.Context, page int) (*models.MovieList, error)
	GetGenres(ctx context.Context) ([]models.Genre, error)
}

// ProfileSource supplies a session's preference profile, or nil when
// the session has too little history for personalization.
type ProfileSource interface {
	Profile(ctx context.Context, sessionID string) (*models.PreferenceProfile, error)
}

// Recorder persists generated recommendation lists for later feedback
// and aggregation. Recording is always best-effort.
type Recorder interface {
	SaveRecommendation(ctx context.Context, rec *models.RecommendationRecord) error
}

// BasedOn describes the seed movie and the strategy that produced a
// recommendation list.
type BasedOn struct {
	MovieID            int            `json:"movie_id"`
	MovieTitle         string         `json:"movie_title"`
	RecommendationType string         `json:"recommendation_type"`
	Genres             []models.Genre `json:"genres,omitempty"`
}

// Result is a ranked recommendation list. Ranking order is whatever
// the winning tier produced.
type Result struct {
	Page         int                   `json:"page"`
	TotalPages   int                   `json:"total_pages"`
	TotalResults int                   `json:"total_results"`
	Movies       []models.MovieSummary `json:"movies"`
	BasedOn      BasedOn               `json:"based_on"`
}

// Engine produces recommendations for a seed movie through a tiered
// fallback: provider-similar, then personalized/genre-based discovery,
// then the global popularity listing. Every tier after the seed fetch
// is infallible with respect to producing a result.
type Engine struct {
	upstream Upstream
	profiles ProfileSource
	store    Recorder
}

// NewEngine creates a new recommendation Engine.
func NewEngine(upstream Upstream, profiles ProfileSource, store Recorder) *Engine {
	return &Engine{upstream: upstream, profiles: profiles, store: store}
}

// Recommend generates a recommendation list for the given seed movie.
// The only error it returns to the caller is a failed seed fetch
// (invalid or unknown id) or an upstream credential failure, which
// indicates a deployment error and aborts immediately.
func (e *Engine) Recommend(ctx context.Context, seedID, page int, sessionID string) (*Result, error) {
	details, err := e.upstream.GetMovieDetails(ctx, seedID)
	if err != nil {
		return nil, err
	}

	result, filters, err := e.pickTier(ctx, details, seedID, page, sessionID)
	if err != nil {
		return nil, err
	}

	if sessionID != "" {
		e.record(ctx, sessionID, details, result, filters)
	}
	return result, nil
}

// pickTier walks the fallback tiers in priority order; the first tier
// that yields a result wins. Tier failures other than a credential
// error count as "tier produced nothing".
func (e *Engine) pickTier(ctx context.Context, details *models.MovieDetails, seedID, page int, sessionID string) (*Result, models.SearchFilters, error) {
	basedOn := BasedOn{MovieID: seedID, MovieTitle: details.Title}

	// Tier 1: the provider's own similar list, verbatim.
	if len(details.Similar) > 0 {
		basedOn.RecommendationType = models.RecTypeSimilar
		return &Result{
			Page:         1,
			TotalPages:   1,
			TotalResults: len(details.Similar),
			Movies:       details.Similar,
			BasedOn:      basedOn,
		}, models.SearchFilters{}, nil
	}

	seedGenreIDs := details.GenreIDs
	if len(seedGenreIDs) > maxSeedGenres {
		seedGenreIDs = seedGenreIDs[:maxSeedGenres]
	}

	// Personalized tier: only when the session has enough history.
	if sessionID != "" && e.profiles != nil {
		profile, err := e.profiles.Profile(ctx, sessionID)
		if err != nil {
			slog.Warn("preference profile unavailable, skipping personalization",
				"session_id", sessionID, "error", err)
		} else if profile != nil {
			filters := models.SearchFilters{
				Genres:     mergeGenres(seedGenreIDs, e.resolveGenreIDs(ctx, profile.TopGenres)),
				GenreNames: genreNames(profile.TopGenres),
				MinRating:  discoveryMinRating,
				MinVotes:   discoveryMinVotes,
			}
			result, err := e.discoverTier(ctx, filters, seedID, page)
			if err != nil {
				return nil, models.SearchFilters{}, err
			}
			if result != nil {
				result.BasedOn = basedOn
				result.BasedOn.RecommendationType = models.RecTypeUserPreference
				result.BasedOn.Genres = details.Genres
				return result, filters, nil
			}
		}
	}

	// Tier 2: genre-filtered discovery from the seed's genres.
	if len(seedGenreIDs) > 0 {
		filters := models.SearchFilters{
			Genres:     seedGenreIDs,
			GenreNames: seedGenreNames(details.Genres, len(seedGenreIDs)),
			MinRating:  discoveryMinRating,
			MinVotes:   discoveryMinVotes,
		}
		result, err := e.discoverTier(ctx, filters, seedID, page)
		if err != nil {
			return nil, models.SearchFilters{}, err
		}
		if result != nil {
			result.BasedOn = basedOn
			result.BasedOn.RecommendationType = models.RecTypeGenreBased
			result.BasedOn.Genres = details.Genres
			return result, filters, nil
		}
	}

	// Tier 3: global popularity. Infallible; an upstream failure here
	// still yields an empty, well-typed result.
	basedOn.RecommendationType = models.RecTypePopularFallback
	list, err := e.upstream.GetPopularMovies(ctx, page)
	if err != nil {
		if tmdb.IsInvalidCredentials(err) {
			return nil, models.SearchFilters{}, err
		}
		slog.Warn("popular fallback unavailable", "seed_id", seedID, "error", err)
		return &Result{
			Page:    page,
			Movies:  []models.MovieSummary{},
			BasedOn: basedOn,
		}, models.SearchFilters{}, nil
	}
	return &Result{
		Page:         list.Page,
		TotalPages:   list.TotalPages,
		TotalResults: list.TotalResults,
		Movies:       excludeSeed(list.Movies, seedID),
		BasedOn:      basedOn,
	}, models.SearchFilters{}, nil
}

// discoverTier runs one discovery query. A nil result with nil error
// means the tier produced nothing and the caller should fall through.
func (e *Engine) discoverTier(ctx context.Context, filters models.SearchFilters, seedID, page int) (*Result, error) {
	list, err := e.upstream.DiscoverMovies(ctx, filters, page)
	if err != nil {
		if tmdb.IsInvalidCredentials(err) {
			return nil, err
		}
		slog.Warn("discovery tier unavailable, falling through",
			"seed_id", seedID, "kind", tmdb.KindOf(err), "error", err)
		return nil, nil
	}
	movies := excludeSeed(list.Movies, seedID)
	if len(movies) == 0 {
		return nil, nil
	}
	return &Result{
		Page:         list.Page,
		TotalPages:   list.TotalPages,
		TotalResults: list.TotalResults,
		Movies:       movies,
	}, nil
}

// record persists the generated list asynchronously. Genre annotation
// and scoring run inside the goroutine so they never add latency to the
// response. Failures are logged and never reach the caller.
func (e *Engine) record(ctx context.Context, sessionID string, details *models.MovieDetails, result *Result, filters models.SearchFilters) {
	if e.store == nil || result.BasedOn.RecommendationType == "" {
		return
	}
	movies := result.Movies
	basedOn := result.BasedOn

	go func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()

		genreByID := e.genreMap(saveCtx)
		entries := make([]models.ScoredMovie, 0, len(movies))
		for _, m := range movies {
			names := make([]string, 0, len(m.GenreIDs))
			for _, id := range m.GenreIDs {
				if name, ok := genreByID[id]; ok {
					names = append(names, name)
				}
			}
			entries = append(entries, models.ScoredMovie{
				ID:          m.ID,
				Title:       m.Title,
				PosterURL:   m.PosterURL,
				Rating:      m.Rating,
				Similarity:  Score(m, names, filters.GenreNames),
				Genres:      names,
				ReleaseDate: m.ReleaseDate,
			})
		}

		rec := &models.RecommendationRecord{
			SessionID:          sessionID,
			BasedOnMovieID:     basedOn.MovieID,
			BasedOnMovieTitle:  details.Title,
			RecommendationType: basedOn.RecommendationType,
			Recommendations:    entries,
			Filters:            filters,
		}
		if err := e.store.SaveRecommendation(saveCtx, rec); err != nil {
			slog.Warn("failed to record recommendation",
				"session_id", sessionID, "seed_id", rec.BasedOnMovieID, "error", err)
		}
	}()
}

// genreMap fetches the id→name genre mapping, tolerating failure.
func (e *Engine) genreMap(ctx context.Context) map[int]string {
	genres, err := e.upstream.GetGenres(ctx)
	if err != nil {
		slog.Warn("genre list unavailable for score annotation", "error", err)
		return map[int]string{}
	}
	byID := make(map[int]string, len(genres))
	for _, g := range genres {
		byID[g.ID] = g.Name
	}
	return byID
}

// resolveGenreIDs maps profile genre names back to provider genre ids.
func (e *Engine) resolveGenreIDs(ctx context.Context, top []models.GenreCount) []int {
	genres, err := e.upstream.GetGenres(ctx)
	if err != nil {
		slog.Warn("genre list unavailable for personalization", "error", err)
		return nil
	}
	byName := make(map[string]int, len(genres))
	for _, g := range genres {
		byName[g.Name] = g.ID
	}
	ids := make([]int, 0, len(top))
	for _, g := range top {
		if id, ok := byName[g.Name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func mergeGenres(seed, preferred []int) []int {
	seen := make(map[int]bool, len(seed)+len(preferred))
	merged := make([]int, 0, len(seed)+len(preferred))
	for _, id := range seed {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range preferred {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

func genreNames(top []models.GenreCount) []string {
	names := make([]string, 0, len(top))
	for _, g := range top {
		names = append(names, g.Name)
	}
	return names
}

func seedGenreNames(genres []models.Genre, limit int) []string {
	if len(genres) > limit {
		genres = genres[:limit]
	}
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}

func excludeSeed(movies []models.MovieSummary, seedID int) []models.MovieSummary {
	out := make([]models.MovieSummary, 0, len(movies))
	for _, m := range movies {
		if m.ID != seedID {
			out = append(out, m)
		}
	}
	return out
}
