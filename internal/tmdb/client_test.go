package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-service/internal/models"
)

func newTestClient(t *testing.T, serverURL string) (*Client, *[]time.Duration) {
	t.Helper()
	client, err := NewClient("test-key", serverURL, "https://image.tmdb.org/t/p", 5*time.Second, DefaultRetryPolicy)
	require.NoError(t, err)

	var delays []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return client, &delays
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "", "", 0, RetryPolicy{})
	require.Error(t, err)
}

func TestRetryPolicyDelayGrowsLinearly(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BackoffUnit: 2 * time.Second}
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 6*time.Second, p.Delay(3))
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":550,"title":"Fight Club"}],"total_pages":1,"total_results":1}`))
	}))
	defer srv.Close()

	client, delays := newTestClient(t, srv.URL)
	list, err := client.GetPopularMovies(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list.Movies, 1)
	assert.Equal(t, 550, list.Movies[0].ID)

	// 3 failed attempts, then success on the 4th, with linear backoff.
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, *delays)
}

func TestSurfacesConnectionUnstableAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	client, delays := newTestClient(t, srv.URL)
	_, err := client.GetPopularMovies(context.Background(), 1)
	require.Error(t, err)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindConnectionUnstable, ue.Kind)
	assert.Equal(t, 3, ue.Retries)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, *delays)
}

func TestFatalStatusesAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindInvalidCredentials},
		{"not found", http.StatusNotFound, KindNotFound},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status_message":"nope"}`))
			}))
			defer srv.Close()

			client, delays := newTestClient(t, srv.URL)
			_, err := client.GetMovieDetails(context.Background(), 42)
			require.Error(t, err)

			var ue *Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.kind, ue.Kind)
			assert.Equal(t, tt.status, ue.Status)
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, *delays)
		})
	}
}

func TestTimeoutFailsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient("test-key", srv.URL, "", 50*time.Millisecond, DefaultRetryPolicy)
	require.NoError(t, err)
	var delays []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err = client.GetPopularMovies(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Empty(t, delays)
}

func TestErrorKindHelpers(t *testing.T) {
	assert.True(t, IsNotFound(&Error{Kind: KindNotFound}))
	assert.True(t, IsInvalidCredentials(&Error{Kind: KindInvalidCredentials}))
	assert.False(t, IsNotFound(context.Canceled))
	assert.Equal(t, KindUnknown, KindOf(context.Canceled))
}

const detailsPayload = `{
	"id": 550,
	"title": "Fight Club",
	"overview": "An insomniac office worker...",
	"release_date": "1999-10-15",
	"vote_average": 8.4,
	"vote_count": 26000,
	"popularity": 61.4,
	"poster_path": "/poster.jpg",
	"backdrop_path": "/backdrop.jpg",
	"runtime": 139,
	"genres": [{"id": 18, "name": "Drama"}, {"id": 53, "name": "Thriller"}],
	"credits": {
		"cast": [
			{"id": 819, "name": "Edward Norton", "character": "The Narrator", "profile_path": "/norton.jpg"},
			{"id": 287, "name": "Brad Pitt", "character": "Tyler Durden", "profile_path": ""},
			{"id": 1, "name": "a", "character": "x"}, {"id": 2, "name": "b", "character": "x"},
			{"id": 3, "name": "c", "character": "x"}, {"id": 4, "name": "d", "character": "x"},
			{"id": 5, "name": "e", "character": "x"}, {"id": 6, "name": "f", "character": "x"},
			{"id": 7, "name": "g", "character": "x"}, {"id": 8, "name": "h", "character": "x"},
			{"id": 9, "name": "i", "character": "x"}, {"id": 10, "name": "j", "character": "x"}
		],
		"crew": [
			{"id": 7467, "name": "David Fincher", "job": "Director", "department": "Directing"},
			{"id": 7468, "name": "Jim Uhls", "job": "Screenplay", "department": "Writing"}
		]
	},
	"similar": {"page": 1, "results": [
		{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}, {"id": 6}, {"id": 7},
		{"id": 8}, {"id": 9}, {"id": 10}, {"id": 11}, {"id": 12}, {"id": 13}, {"id": 14}
	], "total_pages": 1, "total_results": 14},
	"keywords": {"keywords": [{"id": 825, "name": "support group"}, {"id": 851, "name": "dual identity"}]}
}`

func TestMovieDetailsNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "credits,similar,keywords", r.URL.Query().Get("append_to_response"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(detailsPayload))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	details, err := client.GetMovieDetails(context.Background(), 550)
	require.NoError(t, err)

	assert.Equal(t, "https://image.tmdb.org/t/p/w500/poster.jpg", details.PosterURL)
	assert.Equal(t, "https://image.tmdb.org/t/p/w1280/backdrop.jpg", details.BackdropURL)
	assert.Equal(t, []int{18, 53}, details.GenreIDs)
	assert.Equal(t, "David Fincher", details.Director)
	assert.Len(t, details.Cast, 10)
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/norton.jpg", details.Cast[0].ProfileURL)
	assert.Equal(t, "", details.Cast[1].ProfileURL)
	assert.Len(t, details.Similar, 12)
	assert.Equal(t, []string{"support group", "dual identity"}, details.Keywords)
}

func TestListNormalizationNeverReturnsNilCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":7,"title":"No Genres"}],"total_pages":1,"total_results":1}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	list, err := client.SearchMovies(context.Background(), "no genres", 1, models.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, list.Movies, 1)
	assert.NotNil(t, list.Movies[0].GenreIDs)
	assert.Empty(t, list.Movies[0].GenreIDs)
	assert.Equal(t, "", list.Movies[0].PosterURL)
}
