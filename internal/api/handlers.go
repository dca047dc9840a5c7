package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/collections"
	"github.com/Zerr0-C00L/CineShelf/internal/database"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
)

// UserStore is the account storage the auth endpoints use.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, password string) (*database.User, error)
	VerifyPassword(ctx context.Context, username, password string) (*database.User, error)
}

type Handler struct {
	sessions *Registry
	catalog  Catalog
	users    UserStore
	tokens   *auth.Tokens
	health   func(ctx context.Context) error
	jobs     *services.ServiceScheduler
	logger   *slog.Logger
}

func NewHandler(sessions *Registry, catalog Catalog, users UserStore, tokens *auth.Tokens, health func(ctx context.Context) error, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		users:    users,
		tokens:   tokens,
		health:   health,
		logger:   logger,
	}
}

// SetJobs exposes the background job status at /api/v1/jobs.
func (h *Handler) SetJobs(jobs *services.ServiceScheduler) {
	h.jobs = jobs
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	return n, err == nil && n > 0
}

// session returns the caller's controllers. The session middleware has
// already rejected unauthenticated requests.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID, ok := auth.FromContext(r.Context()).CurrentUser()
	if !ok {
		respondError(w, http.StatusUnauthorized, "not signed in")
		return nil, false
	}
	return h.sessions.Get(userID), true
}

// HealthCheck handles GET /api/v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListJobs handles GET /api/v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSON(w, http.StatusOK, []services.ServiceStatus{})
		return
	}
	respondJSON(w, http.StatusOK, h.jobs.GetAllStatus())
}

// GetBrowse handles GET /api/v1/browse
func (h *Handler) GetBrowse(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Browse.State())
}

// SetQuery handles POST /api/v1/browse/query
func (h *Handler) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Browse.SetQuery(req.Query)
	respondJSON(w, http.StatusAccepted, s.Browse.State())
}

// SetCategory handles POST /api/v1/browse/category
func (h *Handler) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Browse.SetCategory(category)
	respondJSON(w, http.StatusAccepted, s.Browse.State())
}

// SetMood handles POST /api/v1/browse/mood
func (h *Handler) SetMood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood string `json:"mood"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mood, found := models.LookupMood(req.Mood)
	if !found {
		respondError(w, http.StatusNotFound, "unknown mood")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Browse.SetMood(mood)
	respondJSON(w, http.StatusAccepted, s.Browse.State())
}

// SetFilter handles POST /api/v1/browse/filter
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var filter models.DiscoverFilter
	if err := decodeBody(r, &filter); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if filter.MinRating != nil && filter.MaxRating != nil && *filter.MinRating > *filter.MaxRating {
		respondError(w, http.StatusBadRequest, "min_rating must not exceed max_rating")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Browse.SetFilter(filter)
	respondJSON(w, http.StatusAccepted, s.Browse.State())
}

// NextPage handles POST /api/v1/browse/next
func (h *Handler) NextPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	started := s.Browse.LoadNextPage()
	respondJSON(w, http.StatusOK, map[string]interface{}{"started": started, "state": s.Browse.State()})
}

// Retry handles POST /api/v1/browse/retry
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	started := s.Browse.Retry()
	respondJSON(w, http.StatusOK, map[string]interface{}{"started": started, "state": s.Browse.State()})
}

// Refresh handles POST /api/v1/browse/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Browse.Refresh()
	respondJSON(w, http.StatusAccepted, s.Browse.State())
}

// GetMovie handles GET /api/v1/movies/{id}
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, valid := pathInt(r, "id")
	if !valid {
		respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	state := s.Detail.Load(r.Context(), id)
	if state.Err != nil {
		respondJSON(w, failureStatus(state.Err), state)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// ToggleWishlist handles POST /api/v1/movies/{id}/wishlist
func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, valid := pathInt(r, "id")
	if !valid {
		respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	state := s.Detail.State()
	if state.MovieID != id || state.Movie == nil {
		state = s.Detail.Load(r.Context(), id)
	}
	if state.Err != nil {
		respondJSON(w, failureStatus(state.Err), state)
		return
	}
	if err := s.Detail.ToggleWishlist(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update wishlist")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"in_wishlist": s.Wishlist.Contains(id)})
}

// ListMoods handles GET /api/v1/moods
func (h *Handler) ListMoods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.Moods())
}

// MoodMovies handles GET /api/v1/moods/{mood}/movies
func (h *Handler) MoodMovies(w http.ResponseWriter, r *http.Request) {
	mood, found := models.LookupMood(mux.Vars(r)["mood"])
	if !found {
		respondError(w, http.StatusNotFound, "unknown mood")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	movies, err := s.Collections.MoodMovies(r.Context(), mood)
	if err != nil {
		f := services.Classify(err)
		respondJSON(w, failureStatus(f), f)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"mood": mood, "movies": movies})
}

// ListGenres handles GET /api/v1/genres
func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.GetGenres(r.Context())
	if err != nil {
		f := services.Classify(err)
		respondJSON(w, failureStatus(f), f)
		return
	}
	respondJSON(w, http.StatusOK, genres)
}

// ListCollections handles GET /api/v1/collections
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Collections.Load(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load collections")
		return
	}
	respondJSON(w, http.StatusOK, s.Collections.State().Collections)
}

// CreateCollection handles POST /api/v1/collections
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	col, err := s.Collections.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.collectionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, col)
}

// GetCollection handles GET /api/v1/collections/{id}
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	details, err := s.Collections.LoadDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.collectionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// DeleteCollection handles DELETE /api/v1/collections/{id}
func (h *Handler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Collections.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.collectionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCollectionMovie handles POST /api/v1/collections/{id}/movies/{movieId}
func (h *Handler) AddCollectionMovie(w http.ResponseWriter, r *http.Request) {
	h.collectionMovie(w, r, func(s *Session, id string, movieID int) error {
		return s.Collections.AddMovie(r.Context(), id, movieID)
	})
}

// RemoveCollectionMovie handles DELETE /api/v1/collections/{id}/movies/{movieId}
func (h *Handler) RemoveCollectionMovie(w http.ResponseWriter, r *http.Request) {
	h.collectionMovie(w, r, func(s *Session, id string, movieID int) error {
		return s.Collections.RemoveMovie(r.Context(), id, movieID)
	})
}

func (h *Handler) collectionMovie(w http.ResponseWriter, r *http.Request, fn func(s *Session, id string, movieID int) error) {
	movieID, valid := pathInt(r, "movieId")
	if !valid {
		respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(s, mux.Vars(r)["id"], movieID); err != nil {
		h.collectionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": s.Notices.Drain()})
}

// SetCollectionCover handles PUT /api/v1/collections/{id}/cover
func (h *Handler) SetCollectionCover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MovieID *int `json:"movie_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Collections.SetCover(r.Context(), mux.Vars(r)["id"], req.MovieID); err != nil {
		h.collectionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) collectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collections.ErrNotFound):
		respondError(w, http.StatusNotFound, "Collection not found")
	case errors.Is(err, collections.ErrEmptyName):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "collection update failed")
	}
}

// GetWishlist handles GET /api/v1/wishlist
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Wishlist.Items())
}

// AddToWishlist handles POST /api/v1/wishlist
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MovieID int `json:"movie_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.MovieID <= 0 {
		respondError(w, http.StatusBadRequest, "movie_id is required")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	movie, err := h.catalog.GetMovie(r.Context(), req.MovieID)
	if err != nil {
		f := services.Classify(err)
		respondJSON(w, failureStatus(f), f)
		return
	}
	if err := s.Wishlist.Add(r.Context(), *movie); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update wishlist")
		return
	}
	respondJSON(w, http.StatusCreated, s.Wishlist.Items())
}

// RemoveFromWishlist handles DELETE /api/v1/wishlist/{movieId}
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	movieID, valid := pathInt(r, "movieId")
	if !valid {
		respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Wishlist.Remove(r.Context(), movieID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update wishlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNotifications handles GET /api/v1/notifications. Messages are returned
// once and then cleared.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Notices.Drain())
}

// failureStatus maps a classified catalog failure to the bridge's status.
func failureStatus(f *services.Failure) int {
	switch f.Kind {
	case services.KindClientError:
		if f.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
