package recommend

import "movie-recommender-service/internal/models"

// Score computes a bounded relevance score for a candidate movie
// against a set of filter genre names. The score only annotates
// stored recommendation entries; it never changes the ranking order
// returned to the caller.
//
// Terms: popularity min(p/100, 1) × 0.3, rating (r/10) × 0.4, and a
// genre-match bonus (matching / len(filterGenres)) × 0.3 when filter
// genres are present. The result is clamped to [0, 1].
func Score(candidate models.MovieSummary, candidateGenres, filterGenres []string) float64 {
	var score float64

	if candidate.Popularity > 0 {
		pop := candidate.Popularity / 100
		if pop > 1 {
			pop = 1
		}
		score += pop * 0.3
	}
	if candidate.Rating > 0 {
		score += (candidate.Rating / 10) * 0.4
	}

	if len(filterGenres) > 0 {
		have := make(map[string]bool, len(candidateGenres))
		for _, g := range candidateGenres {
			have[g] = true
		}
		matching := 0
		for _, g := range filterGenres {
			if have[g] {
				matching++
			}
		}
		score += float64(matching) / float64(len(filterGenres)) * 0.3
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
