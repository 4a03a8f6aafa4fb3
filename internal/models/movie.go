package models

// Genre is a movie genre as reported by the metadata provider.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MovieSummary is the normalized movie shape returned from search,
// discover and listing endpoints. It is a snapshot of the provider's
// data at fetch time and is never persisted verbatim beyond the
// bounded history windows.
type MovieSummary struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	Rating           float64 `json:"rating"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	PosterURL        string  `json:"poster_url"`
	BackdropURL      string  `json:"backdrop_url"`
	GenreIDs         []int   `json:"genre_ids"`
	Adult            bool    `json:"adult"`
	OriginalLanguage string  `json:"original_language"`
	OriginalTitle    string  `json:"original_title"`
}

// CastMember is one credited performer on a movie.
type CastMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Character  string `json:"character"`
	ProfileURL string `json:"profile_url"`
}

// CrewMember is one credited crew entry on a movie.
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
	ProfileURL string `json:"profile_url"`
}

// MovieDetails is the full movie payload fetched on demand. Cast is
// capped at 10 entries and Similar at 12 by the upstream client.
type MovieDetails struct {
	MovieSummary
	Genres   []Genre        `json:"genres"`
	Runtime  int            `json:"runtime"`
	Tagline  string         `json:"tagline"`
	Budget   int64          `json:"budget"`
	Revenue  int64          `json:"revenue"`
	Homepage string         `json:"homepage"`
	Status   string         `json:"status"`
	IMDBId   string         `json:"imdb_id"`
	Cast     []CastMember   `json:"cast"`
	Crew     []CrewMember   `json:"crew"`
	Director string         `json:"director"`
	Similar  []MovieSummary `json:"similar"`
	Keywords []string       `json:"keywords"`
}

// MovieList is a paginated provider listing.
type MovieList struct {
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Movies       []MovieSummary `json:"movies"`
}

// Person is a normalized person search result.
type Person struct {
	ID                 int            `json:"id"`
	Name               string         `json:"name"`
	Popularity         float64        `json:"popularity"`
	ProfileURL         string         `json:"profile_url"`
	KnownForDepartment string         `json:"known_for_department"`
	KnownFor           []MovieSummary `json:"known_for"`
}

// PersonDetails is the full person payload.
type PersonDetails struct {
	Person
	Biography    string         `json:"biography"`
	Birthday     string         `json:"birthday"`
	Deathday     string         `json:"deathday"`
	PlaceOfBirth string         `json:"place_of_birth"`
	CastCredits  []MovieSummary `json:"cast_credits"`
	CrewCredits  []MovieSummary `json:"crew_credits"`
}

// PersonList is a paginated people search result.
type PersonList struct {
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
	People       []Person `json:"people"`
}

// SearchFilters carries the optional constraints for search and
// discovery calls. Zero values mean "not set".
type SearchFilters struct {
	Genres       []int    `json:"genres,omitempty"`
	GenreNames   []string `json:"genre_names,omitempty"`
	Year         int      `json:"year,omitempty"`
	MinRating    float64  `json:"min_rating,omitempty"`
	MaxRating    float64  `json:"max_rating,omitempty"`
	MinVotes     int      `json:"min_votes,omitempty"`
	Cast         []int    `json:"cast,omitempty"`
	Keywords     []int    `json:"keywords,omitempty"`
	SortBy       string   `json:"sort_by,omitempty"`
	Region       string   `json:"region,omitempty"`
	IncludeAdult bool     `json:"include_adult,omitempty"`
}
