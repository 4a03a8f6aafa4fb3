package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"movie-recommender-service/internal/models"
)

const (
	posterSize   = "w500"
	backdropSize = "w1280"
	profileSize  = "w185"

	maxCastEntries    = 10
	maxCrewEntries    = 5
	maxSimilarEntries = 12
)

// Client is the resilient TMDB API client. It is stateless and safe
// for concurrent use from multiple requests.
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	retry        RetryPolicy
	http         *http.Client
	sleep        sleepFunc
}

// NewClient creates a new TMDB API client. The API key is mandatory:
// without it every call would fail with a credential error, so
// construction is refused outright.
func NewClient(apiKey, baseURL, imageBaseURL string, timeout time.Duration, retry RetryPolicy) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("tmdb: API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	if imageBaseURL == "" {
		imageBaseURL = "https://image.tmdb.org/t/p"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retry.MaxAttempts <= 0 || retry.BackoffUnit <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		retry:        retry,
		http:         &http.Client{Timeout: timeout},
		sleep:        sleepWithContext,
	}, nil
}

// ---- TMDB Response Types (internal, not exposed to consumers) ----

type rawMovie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	GenreIDs         []int   `json:"genre_ids"`
	Adult            bool    `json:"adult"`
	OriginalLanguage string  `json:"original_language"`
	OriginalTitle    string  `json:"original_title"`
}

type rawMovieList struct {
	Page         int        `json:"page"`
	Results      []rawMovie `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

type rawCastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

type rawCrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

type rawCredits struct {
	Cast []rawCastMember `json:"cast"`
	Crew []rawCrewMember `json:"crew"`
}

type rawKeyword struct {
	Name string `json:"name"`
}

type rawMovieDetails struct {
	rawMovie
	Genres   []models.Genre `json:"genres"`
	Runtime  int            `json:"runtime"`
	Tagline  string         `json:"tagline"`
	Budget   int64          `json:"budget"`
	Revenue  int64          `json:"revenue"`
	Homepage string         `json:"homepage"`
	Status   string         `json:"status"`
	IMDBId   string         `json:"imdb_id"`
	Credits  *rawCredits    `json:"credits"`
	Similar  *rawMovieList  `json:"similar"`
	Keywords *struct {
		Keywords []rawKeyword `json:"keywords"`
	} `json:"keywords"`
}

type rawKnownFor struct {
	rawMovie
	Name         string `json:"name"`
	MediaType    string `json:"media_type"`
	FirstAirDate string `json:"first_air_date"`
}

type rawPerson struct {
	ID                 int           `json:"id"`
	Name               string        `json:"name"`
	Popularity         float64       `json:"popularity"`
	ProfilePath        string        `json:"profile_path"`
	KnownForDepartment string        `json:"known_for_department"`
	KnownFor           []rawKnownFor `json:"known_for"`
}

type rawPersonList struct {
	Page         int         `json:"page"`
	Results      []rawPerson `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

type rawPersonDetails struct {
	rawPerson
	Biography    string `json:"biography"`
	Birthday     string `json:"birthday"`
	Deathday     string `json:"deathday"`
	PlaceOfBirth string `json:"place_of_birth"`
	MovieCredits *struct {
		Cast []rawMovie `json:"cast"`
		Crew []rawMovie `json:"crew"`
	} `json:"movie_credits"`
}

type rawGenreList struct {
	Genres []models.Genre `json:"genres"`
}

type rawStatus struct {
	StatusMessage string `json:"status_message"`
}

// ---- Client Methods ----

// SearchMovies searches movies by title.
func (c *Client) SearchMovies(ctx context.Context, query string, page int, filters models.SearchFilters) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", strconv.FormatBool(filters.IncludeAdult))
	if filters.Year > 0 {
		params.Set("year", strconv.Itoa(filters.Year))
	}
	if filters.Region != "" {
		params.Set("region", filters.Region)
	}

	var raw rawMovieList
	if err := c.get(ctx, "search_movies", "/search/movie", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetPopularMovies fetches the global popularity listing.
func (c *Client) GetPopularMovies(ctx context.Context, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "popular_movies", "/movie/popular", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetTrendingMovies fetches trending movies for a time window ("day" or "week").
func (c *Client) GetTrendingMovies(ctx context.Context, window string, page int) (*models.MovieList, error) {
	if window != "week" {
		window = "day"
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "trending_movies", "/trending/movie/"+window, params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetNowPlayingMovies fetches movies currently in theaters.
func (c *Client) GetNowPlayingMovies(ctx context.Context, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "now_playing_movies", "/movie/now_playing", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetUpcomingMovies fetches upcoming releases.
func (c *Client) GetUpcomingMovies(ctx context.Context, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "upcoming_movies", "/movie/upcoming", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetTopRatedMovies fetches the top rated listing.
func (c *Client) GetTopRatedMovies(ctx context.Context, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "top_rated_movies", "/movie/top_rated", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetMovieDetails fetches a movie with credits, similar titles and
// keywords expanded in a single call.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int) (*models.MovieDetails, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,similar,keywords")

	var raw rawMovieDetails
	if err := c.get(ctx, "movie_details", "/movie/"+strconv.Itoa(movieID), params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieDetails(&raw), nil
}

// DiscoverMovies queries the discover endpoint with the given filters.
func (c *Client) DiscoverMovies(ctx context.Context, filters models.SearchFilters, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	params.Set("sort_by", sortBy)
	if len(filters.Genres) > 0 {
		params.Set("with_genres", joinInts(filters.Genres))
	}
	if filters.Year > 0 {
		params.Set("year", strconv.Itoa(filters.Year))
	}
	if filters.MinRating > 0 {
		params.Set("vote_average.gte", strconv.FormatFloat(filters.MinRating, 'f', -1, 64))
	}
	if filters.MaxRating > 0 {
		params.Set("vote_average.lte", strconv.FormatFloat(filters.MaxRating, 'f', -1, 64))
	}
	if filters.MinVotes > 0 {
		params.Set("vote_count.gte", strconv.Itoa(filters.MinVotes))
	}
	if len(filters.Cast) > 0 {
		params.Set("with_cast", joinInts(filters.Cast))
	}
	if len(filters.Keywords) > 0 {
		params.Set("with_keywords", joinInts(filters.Keywords))
	}

	var raw rawMovieList
	if err := c.get(ctx, "discover_movies", "/discover/movie", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetMovieRecommendations fetches the provider's own recommendations
// for a movie.
func (c *Client) GetMovieRecommendations(ctx context.Context, movieID, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "movie_recommendations", "/movie/"+strconv.Itoa(movieID)+"/recommendations", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetSimilarMovies fetches movies similar to the given one.
func (c *Client) GetSimilarMovies(ctx context.Context, movieID, page int) (*models.MovieList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var raw rawMovieList
	if err := c.get(ctx, "similar_movies", "/movie/"+strconv.Itoa(movieID)+"/similar", params, &raw); err != nil {
		return nil, err
	}
	return c.toMovieList(&raw), nil
}

// GetGenres fetches the full movie genre list.
func (c *Client) GetGenres(ctx context.Context) ([]models.Genre, error) {
	var raw rawGenreList
	if err := c.get(ctx, "genre_list", "/genre/movie/list", url.Values{}, &raw); err != nil {
		return nil, err
	}
	if raw.Genres == nil {
		raw.Genres = []models.Genre{}
	}
	return raw.Genres, nil
}

// SearchPeople searches actors, directors and other people.
func (c *Client) SearchPeople(ctx context.Context, query string, page int) (*models.PersonList, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))

	var raw rawPersonList
	if err := c.get(ctx, "search_people", "/search/person", params, &raw); err != nil {
		return nil, err
	}

	people := make([]models.Person, 0, len(raw.Results))
	for _, p := range raw.Results {
		people = append(people, c.toPerson(&p))
	}
	return &models.PersonList{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResults,
		People:       people,
	}, nil
}

// GetPersonDetails fetches a person with movie credits expanded.
func (c *Client) GetPersonDetails(ctx context.Context, personID int) (*models.PersonDetails, error) {
	params := url.Values{}
	params.Set("append_to_response", "movie_credits")

	var raw rawPersonDetails
	if err := c.get(ctx, "person_details", "/person/"+strconv.Itoa(personID), params, &raw); err != nil {
		return nil, err
	}

	details := &models.PersonDetails{
		Person:       c.toPerson(&raw.rawPerson),
		Biography:    raw.Biography,
		Birthday:     raw.Birthday,
		Deathday:     raw.Deathday,
		PlaceOfBirth: raw.PlaceOfBirth,
		CastCredits:  []models.MovieSummary{},
		CrewCredits:  []models.MovieSummary{},
	}
	if raw.MovieCredits != nil {
		for _, m := range raw.MovieCredits.Cast {
			details.CastCredits = append(details.CastCredits, c.toMovieSummary(&m))
		}
		for _, m := range raw.MovieCredits.Crew {
			details.CrewCredits = append(details.CrewCredits, c.toMovieSummary(&m))
		}
	}
	return details, nil
}

// ---- Request Execution ----

// get runs one logical request under the retry policy. Only
// connection-reset class transport errors and 5xx responses are
// retried; the retry count is recorded on the surfaced error.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, op, path, params, out)
		if err == nil {
			return nil
		}

		var ue *Error
		if !errors.As(err, &ue) {
			return err
		}
		if !ue.retryable() || attempt >= c.retry.MaxAttempts {
			ue.Retries = attempt
			return ue
		}

		delay := c.retry.Delay(attempt + 1)
		slog.Warn("retrying TMDB request",
			"op", op, "attempt", attempt+1, "max_attempts", c.retry.MaxAttempts,
			"delay", delay, "kind", ue.Kind)
		if serr := c.sleep(ctx, delay); serr != nil {
			// Caller abort cancels the backoff timer with it.
			ue.Retries = attempt
			ue.Err = serr
			return ue
		}
	}
}

func (c *Client) doOnce(ctx context.Context, op, path string, params url.Values, out any) error {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "movie-recommender-service/1.0")

	slog.Debug("TMDB request", "op", op, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return classifyStatus(op, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classifyTransport maps transport-level failures onto the error
// taxonomy. Timeouts fail immediately; connection resets, refused
// connections and DNS failures form the retryable class.
func classifyTransport(op string, err error) *Error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnknown, Op: op, Err: err}
	}
	return &Error{Kind: KindConnectionUnstable, Op: op, Err: err}
}

// classifyStatus maps non-200 responses onto the error taxonomy. The
// provider's status_message is carried along when present.
func classifyStatus(op string, status int, body []byte) *Error {
	var payload rawStatus
	_ = json.Unmarshal(body, &payload)
	cause := errors.New(payload.StatusMessage)
	if payload.StatusMessage == "" {
		cause = fmt.Errorf("unexpected response: %s", string(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindInvalidCredentials, Op: op, Status: status, Err: cause}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Status: status, Err: cause}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Op: op, Status: status, Err: cause}
	case status >= http.StatusInternalServerError:
		return &Error{Kind: KindServerError, Op: op, Status: status, Err: cause}
	default:
		return &Error{Kind: KindUnknown, Op: op, Status: status, Err: cause}
	}
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// ---- Normalization ----

// imageURL resolves a provider image path to an absolute URL of the
// given size variant. Empty paths stay empty, never null.
func (c *Client) imageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return c.imageBaseURL + "/" + size + path
}

func (c *Client) toMovieSummary(m *rawMovie) models.MovieSummary {
	genreIDs := m.GenreIDs
	if genreIDs == nil {
		genreIDs = []int{}
	}
	return models.MovieSummary{
		ID:               m.ID,
		Title:            m.Title,
		Overview:         m.Overview,
		ReleaseDate:      m.ReleaseDate,
		Rating:           m.VoteAverage,
		VoteCount:        m.VoteCount,
		Popularity:       m.Popularity,
		PosterURL:        c.imageURL(m.PosterPath, posterSize),
		BackdropURL:      c.imageURL(m.BackdropPath, backdropSize),
		GenreIDs:         genreIDs,
		Adult:            m.Adult,
		OriginalLanguage: m.OriginalLanguage,
		OriginalTitle:    m.OriginalTitle,
	}
}

func (c *Client) toMovieList(raw *rawMovieList) *models.MovieList {
	movies := make([]models.MovieSummary, 0, len(raw.Results))
	for _, m := range raw.Results {
		movies = append(movies, c.toMovieSummary(&m))
	}
	return &models.MovieList{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResults,
		Movies:       movies,
	}
}

func (c *Client) toMovieDetails(raw *rawMovieDetails) *models.MovieDetails {
	details := &models.MovieDetails{
		MovieSummary: c.toMovieSummary(&raw.rawMovie),
		Genres:       raw.Genres,
		Runtime:      raw.Runtime,
		Tagline:      raw.Tagline,
		Budget:       raw.Budget,
		Revenue:      raw.Revenue,
		Homepage:     raw.Homepage,
		Status:       raw.Status,
		IMDBId:       raw.IMDBId,
		Cast:         []models.CastMember{},
		Crew:         []models.CrewMember{},
		Similar:      []models.MovieSummary{},
		Keywords:     []string{},
	}
	if details.Genres == nil {
		details.Genres = []models.Genre{}
	}

	// The detail payload carries genre objects instead of genre_ids.
	if len(details.GenreIDs) == 0 {
		ids := make([]int, 0, len(details.Genres))
		for _, g := range details.Genres {
			ids = append(ids, g.ID)
		}
		details.GenreIDs = ids
	}

	if raw.Credits != nil {
		cast := raw.Credits.Cast
		if len(cast) > maxCastEntries {
			cast = cast[:maxCastEntries]
		}
		for _, p := range cast {
			details.Cast = append(details.Cast, models.CastMember{
				ID:         p.ID,
				Name:       p.Name,
				Character:  p.Character,
				ProfileURL: c.imageURL(p.ProfilePath, profileSize),
			})
		}
		for _, p := range raw.Credits.Crew {
			if p.Job == "Director" {
				details.Director = p.Name
				break
			}
		}
		crew := raw.Credits.Crew
		if len(crew) > maxCrewEntries {
			crew = crew[:maxCrewEntries]
		}
		for _, p := range crew {
			details.Crew = append(details.Crew, models.CrewMember{
				ID:         p.ID,
				Name:       p.Name,
				Job:        p.Job,
				Department: p.Department,
				ProfileURL: c.imageURL(p.ProfilePath, profileSize),
			})
		}
	}

	if raw.Similar != nil {
		similar := raw.Similar.Results
		if len(similar) > maxSimilarEntries {
			similar = similar[:maxSimilarEntries]
		}
		for _, m := range similar {
			details.Similar = append(details.Similar, c.toMovieSummary(&m))
		}
	}

	if raw.Keywords != nil {
		for _, k := range raw.Keywords.Keywords {
			details.Keywords = append(details.Keywords, k.Name)
		}
	}

	return details
}

func (c *Client) toPerson(p *rawPerson) models.Person {
	knownFor := make([]models.MovieSummary, 0, len(p.KnownFor))
	for _, k := range p.KnownFor {
		summary := c.toMovieSummary(&k.rawMovie)
		if summary.Title == "" {
			summary.Title = k.Name
		}
		if summary.ReleaseDate == "" {
			summary.ReleaseDate = k.FirstAirDate
		}
		knownFor = append(knownFor, summary)
	}
	return models.Person{
		ID:                 p.ID,
		Name:               p.Name,
		Popularity:         p.Popularity,
		ProfileURL:         c.imageURL(p.ProfilePath, profileSize),
		KnownForDepartment: p.KnownForDepartment,
		KnownFor:           knownFor,
	}
}
