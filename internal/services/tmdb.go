package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

const (
	tmdbBaseURL     = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"
	defaultTimeout  = 60 * time.Second
)

// Catalog is the subset of the movie API the controllers consume.
type Catalog interface {
	FetchByCategory(ctx context.Context, category models.Category, filter *models.DiscoverFilter, page int) (*models.Page, error)
	Search(ctx context.Context, query string, page int) (*models.Page, error)
	GetMovie(ctx context.Context, tmdbID int) (*models.Movie, error)
	GetCredits(ctx context.Context, tmdbID int) (*models.Credits, error)
	GetVideos(ctx context.Context, tmdbID int) ([]models.Video, error)
}

// ResponseCache stores raw catalog responses keyed by request.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
}

type TMDBClient struct {
	apiKey      string
	accessToken string
	baseURL     string
	language    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	cache       ResponseCache
	logger      *slog.Logger
}

type Option func(*TMDBClient)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *TMDBClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithLanguage(lang string) Option {
	return func(c *TMDBClient) {
		if lang != "" {
			c.language = lang
		}
	}
}

// WithAccessToken sends a v4 bearer token alongside the api_key.
func WithAccessToken(token string) Option {
	return func(c *TMDBClient) { c.accessToken = token }
}

func WithTimeout(d time.Duration) Option {
	return func(c *TMDBClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *TMDBClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithCache(cache ResponseCache) Option {
	return func(c *TMDBClient) { c.cache = cache }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *TMDBClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewTMDBClient(apiKey string, opts ...Option) *TMDBClient {
	c := &TMDBClient{
		apiKey:   apiKey,
		baseURL:  tmdbBaseURL,
		language: defaultLanguage,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Movie API responses
type tmdbMovie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          *int    `json:"runtime"`
	OriginalLanguage string  `json:"original_language"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids"`
	Genres           []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type tmdbPage struct {
	Page         int         `json:"page"`
	Results      []tmdbMovie `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

type tmdbCredits struct {
	ID   int `json:"id"`
	Cast []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Character   string `json:"character"`
		ProfilePath string `json:"profile_path"`
		Order       int    `json:"order"`
	} `json:"cast"`
}

type tmdbVideos struct {
	ID      int            `json:"id"`
	Results []models.Video `json:"results"`
}

var categoryPaths = map[models.Category]string{
	models.CategoryPopular:    "/movie/popular",
	models.CategoryNowPlaying: "/movie/now_playing",
	models.CategoryUpcoming:   "/movie/upcoming",
	models.CategoryTopRated:   "/movie/top_rated",
	models.CategoryDiscover:   "/discover/movie",
}

// FetchByCategory returns one page of a browse list. The filter only applies to
// the discover category.
func (c *TMDBClient) FetchByCategory(ctx context.Context, category models.Category, filter *models.DiscoverFilter, page int) (*models.Page, error) {
	path, ok := categoryPaths[category]
	if !ok {
		return nil, fmt.Errorf("unsupported category %q", category)
	}

	params := url.Values{}
	if category == models.CategoryDiscover {
		f := models.DiscoverFilter{}
		if filter != nil {
			f = *filter
		}
		params = f.Values()
	}
	params.Set("page", fmt.Sprintf("%d", normalizePage(page)))

	return c.fetchPage(ctx, path, params)
}

// Discover returns a page of movies matching the filter.
func (c *TMDBClient) Discover(ctx context.Context, filter models.DiscoverFilter, page int) (*models.Page, error) {
	return c.FetchByCategory(ctx, models.CategoryDiscover, &filter, page)
}

// Search searches for movies by title
func (c *TMDBClient) Search(ctx context.Context, query string, page int) (*models.Page, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", fmt.Sprintf("%d", normalizePage(page)))

	return c.fetchPage(ctx, "/search/movie", params)
}

// GetMovie retrieves movie details from TMDB
func (c *TMDBClient) GetMovie(ctx context.Context, tmdbID int) (*models.Movie, error) {
	data, err := c.makeRequest(ctx, fmt.Sprintf("/movie/%d", tmdbID), url.Values{})
	if err != nil {
		return nil, err
	}

	var tm tmdbMovie
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal movie: %w", err)
	}

	movie := convertMovie(&tm)
	return &movie, nil
}

// GetCredits retrieves the cast list for a movie
func (c *TMDBClient) GetCredits(ctx context.Context, tmdbID int) (*models.Credits, error) {
	data, err := c.makeRequest(ctx, fmt.Sprintf("/movie/%d/credits", tmdbID), url.Values{})
	if err != nil {
		return nil, err
	}

	var tc tmdbCredits
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credits: %w", err)
	}

	credits := &models.Credits{ID: tc.ID, Cast: make([]models.Cast, 0, len(tc.Cast))}
	for _, cm := range tc.Cast {
		credits.Cast = append(credits.Cast, models.Cast{
			ID:          cm.ID,
			Name:        cm.Name,
			Character:   cm.Character,
			ProfilePath: cm.ProfilePath,
			Order:       cm.Order,
		})
	}

	return credits, nil
}

// GetVideos retrieves trailers, teasers and clips for a movie
func (c *TMDBClient) GetVideos(ctx context.Context, tmdbID int) ([]models.Video, error) {
	data, err := c.makeRequest(ctx, fmt.Sprintf("/movie/%d/videos", tmdbID), url.Values{})
	if err != nil {
		return nil, err
	}

	var tv tmdbVideos
	if err := json.Unmarshal(data, &tv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal videos: %w", err)
	}

	return tv.Results, nil
}

// GetGenres returns the movie genre list
func (c *TMDBClient) GetGenres(ctx context.Context) ([]models.Genre, error) {
	data, err := c.makeRequest(ctx, "/genre/movie/list", url.Values{})
	if err != nil {
		return nil, err
	}

	var result struct {
		Genres []models.Genre `json:"genres"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genres: %w", err)
	}

	return result.Genres, nil
}

func (c *TMDBClient) fetchPage(ctx context.Context, path string, params url.Values) (*models.Page, error) {
	data, err := c.makeRequest(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var tp tmdbPage
	if err := json.Unmarshal(data, &tp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}

	page := &models.Page{
		Page:         tp.Page,
		TotalPages:   tp.TotalPages,
		TotalResults: tp.TotalResults,
		Results:      make([]models.Movie, 0, len(tp.Results)),
	}
	for i := range tp.Results {
		page.Results = append(page.Results, convertMovie(&tp.Results[i]))
	}

	return page, nil
}

// makeRequest performs an HTTP GET request to TMDB API
func (c *TMDBClient) makeRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("language", c.language)

	// cache key never carries credentials
	cacheKey := path + "?" + params.Encode()
	if c.cache != nil {
		if data, ok := c.cache.Get(ctx, cacheKey); ok {
			return data, nil
		}
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TMDB endpoint %s: %w", path, err)
	}

	q := u.Query()
	for k, vals := range params {
		for _, v := range vals {
			q.Add(k, v)
		}
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("tmdb request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Body: string(data)}
	}

	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, data)
	}

	return data, nil
}

// convertMovie converts TMDB movie to internal model
func convertMovie(tm *tmdbMovie) models.Movie {
	var genres []models.Genre
	genreIDs := tm.GenreIDs
	if len(tm.Genres) > 0 {
		genres = make([]models.Genre, len(tm.Genres))
		genreIDs = make([]int, len(tm.Genres))
		for i, g := range tm.Genres {
			genres[i] = models.Genre{ID: g.ID, Name: g.Name}
			genreIDs[i] = g.ID
		}
	}

	return models.Movie{
		ID:               tm.ID,
		Title:            tm.Title,
		Overview:         tm.Overview,
		PosterPath:       tm.PosterPath,
		BackdropPath:     tm.BackdropPath,
		ReleaseDate:      tm.ReleaseDate,
		VoteAverage:      tm.VoteAverage,
		VoteCount:        tm.VoteCount,
		GenreIDs:         genreIDs,
		Genres:           genres,
		Runtime:          tm.Runtime,
		OriginalLanguage: tm.OriginalLanguage,
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
