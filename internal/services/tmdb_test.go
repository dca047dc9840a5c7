package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *TMDBClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTMDBClient("test-key", append([]Option{WithBaseURL(srv.URL)}, opts...)...)
}

func TestFetchByCategoryPopular(t *testing.T) {
	var gotPath, gotKey, gotPage, gotLang string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotPage = r.URL.Query().Get("page")
		gotLang = r.URL.Query().Get("language")
		w.Write([]byte(`{"page":2,"total_pages":5,"total_results":100,"results":[
			{"id":1,"title":"One","release_date":"1999-03-31","vote_average":8.1,"genre_ids":[28,12]},
			{"id":2,"title":"Two","poster_path":"/p.jpg"}]}`))
	})

	page, err := client.FetchByCategory(context.Background(), models.CategoryPopular, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, "/movie/popular", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "2", gotPage)
	assert.Equal(t, "en-US", gotLang)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.TotalPages)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "One", page.Results[0].Title)
	assert.Equal(t, []int{28, 12}, page.Results[0].GenreIDs)
	assert.Equal(t, 1999, page.Results[0].Year())
	assert.Equal(t, "/p.jpg", page.Results[1].PosterPath)
	assert.True(t, page.HasMore())
}

func TestFetchByCategoryPaths(t *testing.T) {
	cases := map[models.Category]string{
		models.CategoryNowPlaying: "/movie/now_playing",
		models.CategoryUpcoming:   "/movie/upcoming",
		models.CategoryTopRated:   "/movie/top_rated",
		models.CategoryDiscover:   "/discover/movie",
	}
	for category, want := range cases {
		t.Run(string(category), func(t *testing.T) {
			var got string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Path
				w.Write([]byte(`{"page":1,"total_pages":1,"results":[]}`))
			})
			_, err := client.FetchByCategory(context.Background(), category, nil, 1)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDiscoverEncodesFilter(t *testing.T) {
	var q map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"page":1,"total_pages":1,"results":[]}`))
	})

	year := 2010
	minR, maxR := 6.5, 9.0
	_, err := client.Discover(context.Background(), models.DiscoverFilter{
		GenreIDs:  []int{35, 16},
		Year:      &year,
		MinRating: &minR,
		MaxRating: &maxR,
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, "35,16", q["with_genres"])
	assert.Equal(t, "2010", q["primary_release_year"])
	assert.Equal(t, "6.5", q["vote_average.gte"])
	assert.Equal(t, "9", q["vote_average.lte"])
	assert.Equal(t, "popularity.desc", q["sort_by"])
	assert.Equal(t, "3", q["page"])
}

func TestSearchSendsQuery(t *testing.T) {
	var gotQuery, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"page":1,"total_pages":1,"results":[{"id":268,"title":"Batman"}]}`))
	}, WithAccessToken("tok"), WithLanguage("de-DE"))

	page, err := client.Search(context.Background(), "bat man", 0)
	require.NoError(t, err)
	assert.Equal(t, "bat man", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, 268, page.Results[0].ID)
	assert.False(t, page.HasMore())
}

func TestGetMovieDetailCreditsVideos(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603":
			w.Write([]byte(`{"id":603,"title":"The Matrix","runtime":136,"genres":[{"id":28,"name":"Action"}]}`))
		case "/movie/603/credits":
			w.Write([]byte(`{"id":603,"cast":[{"id":6384,"name":"Keanu Reeves","character":"Neo","order":0}]}`))
		case "/movie/603/videos":
			w.Write([]byte(`{"id":603,"results":[{"id":"a","key":"k1","site":"YouTube","type":"Featurette"},{"id":"b","key":"k2","site":"YouTube","type":"trailer"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	movie, err := client.GetMovie(ctx, 603)
	require.NoError(t, err)
	require.NotNil(t, movie.Runtime)
	assert.Equal(t, 136, *movie.Runtime)
	assert.Equal(t, []int{28}, movie.GenreIDs)
	assert.Equal(t, "Action", movie.Genres[0].Name)

	credits, err := client.GetCredits(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "Neo", credits.Cast[0].Character)

	videos, err := client.GetVideos(ctx, 603)
	require.NoError(t, err)
	trailer := PickTrailer(videos)
	require.NotNil(t, trailer)
	assert.Equal(t, "k2", trailer.Key)
	assert.Equal(t, "https://www.youtube.com/watch?v=k2", trailer.WatchURL())
}

func TestNon200ReturnsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	})

	_, err := client.GetMovie(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), "test-key")
	assert.Equal(t, KindClientError, Classify(err).Kind)
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return d, ok
}

func (m *memoryCache) Set(_ context.Context, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
}

func TestCacheServesRepeatedRequests(t *testing.T) {
	hits := 0
	cache := &memoryCache{data: map[string][]byte{}}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"page":1,"total_pages":1,"results":[{"id":7}]}`))
	}, WithCache(cache), WithRateLimit(100))

	for i := 0; i < 3; i++ {
		page, err := client.FetchByCategory(context.Background(), models.CategoryTopRated, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, 7, page.Results[0].ID)
	}
	assert.Equal(t, 1, hits)
	for key := range cache.data {
		assert.NotContains(t, key, "api_key")
	}
}

func TestUnsupportedCategory(t *testing.T) {
	client := NewTMDBClient("k")
	_, err := client.FetchByCategory(context.Background(), models.Category("trending"), nil, 1)
	assert.Error(t, err)
}
