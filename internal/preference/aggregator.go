package preference

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"movie-recommender-service/internal/models"
)

const (
	// A profile is derived from at most the 20 most recent searches.
	profileWindow = 20
	// Sessions with fewer searches than this get no profile at all.
	minSearchesForProfile = 3

	defaultRatingFloor = 6.0
	maxTopGenres       = 5
	maxTopKeywords     = 10
	minKeywordLength   = 3
)

// Store is the slice of the interaction store the aggregator reads.
type Store interface {
	RecentSearches(ctx context.Context, sessionID string, limit int) ([]models.SearchHistoryRecord, error)
	Sweep(ctx context.Context) (int64, int64, error)
}

// Aggregator derives a session's preference profile from its search
// history. Profiles are always recomputed, never stored.
type Aggregator struct {
	store Store
}

// NewAggregator creates a new Aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Profile computes the preference profile for a session. Returns
// (nil, nil) when the session has fewer than 3 recorded searches:
// callers must treat that as "skip personalization", not as an error.
func (a *Aggregator) Profile(ctx context.Context, sessionID string) (*models.PreferenceProfile, error) {
	// Expired rows are excluded by the read itself; the sweep just
	// reclaims space opportunistically.
	if _, _, err := a.store.Sweep(ctx); err != nil {
		slog.Warn("retention sweep failed", "error", err)
	}

	records, err := a.store.RecentSearches(ctx, sessionID, profileWindow)
	if err != nil {
		return nil, err
	}
	if len(records) < minSearchesForProfile {
		return nil, nil
	}

	return &models.PreferenceProfile{
		TotalSearches:      len(records),
		TopGenres:          topGenres(records),
		TopKeywords:        topKeywords(records),
		AverageRatingFloor: averageRatingFloor(records),
		LastUpdated:        time.Now().UTC(),
	}, nil
}

// topGenres flattens the recorded filter genres across the window and
// counts occurrences by name. Ties break by first-seen order in the
// flattened sequence.
func topGenres(records []models.SearchHistoryRecord) []models.GenreCount {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	idx := 0
	for _, rec := range records {
		for _, name := range rec.Filters.GenreNames {
			if name == "" {
				continue
			}
			if _, ok := counts[name]; !ok {
				firstSeen[name] = idx
			}
			counts[name]++
			idx++
		}
	}
	return rankGenres(counts, firstSeen, maxTopGenres)
}

// topKeywords tokenizes historical queries on whitespace, lower-cased,
// discarding tokens shorter than 3 characters.
func topKeywords(records []models.SearchHistoryRecord) []models.KeywordCount {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	idx := 0
	for _, rec := range records {
		for _, word := range strings.Fields(strings.ToLower(rec.SearchQuery)) {
			if len(word) < minKeywordLength {
				continue
			}
			if _, ok := counts[word]; !ok {
				firstSeen[word] = idx
			}
			counts[word]++
			idx++
		}
	}

	ranked := make([]models.KeywordCount, 0, len(counts))
	for word, count := range counts {
		ranked = append(ranked, models.KeywordCount{Word: word, Count: count})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Word] < firstSeen[ranked[j].Word]
	})
	if len(ranked) > maxTopKeywords {
		ranked = ranked[:maxTopKeywords]
	}
	return ranked
}

func rankGenres(counts map[string]int, firstSeen map[string]int, limit int) []models.GenreCount {
	ranked := make([]models.GenreCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, models.GenreCount{Name: name, Count: count})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Name] < firstSeen[ranked[j].Name]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// averageRatingFloor is the mean of the minimum-rating filters the
// session actually set, defaulting to 6.0 when none were recorded.
func averageRatingFloor(records []models.SearchHistoryRecord) float64 {
	var sum float64
	var n int
	for _, rec := range records {
		if rec.Filters.MinRating > 0 {
			sum += rec.Filters.MinRating
			n++
		}
	}
	if n == 0 {
		return defaultRatingFloor
	}
	return sum / float64(n)
}
