package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, tokens *auth.Tokens, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	api.HandleFunc("/jobs", handler.ListJobs).Methods("GET")

	// Auth
	api.HandleFunc("/auth/register", handler.Register).Methods("POST")
	api.HandleFunc("/auth/login", handler.Login).Methods("POST")
	api.HandleFunc("/auth/verify", handler.VerifyToken).Methods("GET")
	api.HandleFunc("/auth/logout", handler.Logout).Methods("POST")

	// Browse
	api.HandleFunc("/browse", handler.GetBrowse).Methods("GET")
	api.HandleFunc("/browse/ws", handler.BrowseSocket).Methods("GET")
	api.HandleFunc("/browse/query", handler.SetQuery).Methods("POST")
	api.HandleFunc("/browse/category", handler.SetCategory).Methods("POST")
	api.HandleFunc("/browse/mood", handler.SetMood).Methods("POST")
	api.HandleFunc("/browse/filter", handler.SetFilter).Methods("POST")
	api.HandleFunc("/browse/next", handler.NextPage).Methods("POST")
	api.HandleFunc("/browse/retry", handler.Retry).Methods("POST")
	api.HandleFunc("/browse/refresh", handler.Refresh).Methods("POST")

	// Movies
	api.HandleFunc("/movies/{id}", handler.GetMovie).Methods("GET")
	api.HandleFunc("/movies/{id}/wishlist", handler.ToggleWishlist).Methods("POST")

	// Moods and genres
	api.HandleFunc("/moods", handler.ListMoods).Methods("GET")
	api.HandleFunc("/moods/{mood}/movies", handler.MoodMovies).Methods("GET")
	api.HandleFunc("/genres", handler.ListGenres).Methods("GET")

	// Collections
	api.HandleFunc("/collections", handler.ListCollections).Methods("GET")
	api.HandleFunc("/collections", handler.CreateCollection).Methods("POST")
	api.HandleFunc("/collections/{id}", handler.GetCollection).Methods("GET")
	api.HandleFunc("/collections/{id}", handler.DeleteCollection).Methods("DELETE")
	api.HandleFunc("/collections/{id}/cover", handler.SetCollectionCover).Methods("PUT")
	api.HandleFunc("/collections/{id}/movies/{movieId}", handler.AddCollectionMovie).Methods("POST")
	api.HandleFunc("/collections/{id}/movies/{movieId}", handler.RemoveCollectionMovie).Methods("DELETE")

	// Wishlist
	api.HandleFunc("/wishlist", handler.GetWishlist).Methods("GET")
	api.HandleFunc("/wishlist", handler.AddToWishlist).Methods("POST")
	api.HandleFunc("/wishlist/{movieId}", handler.RemoveFromWishlist).Methods("DELETE")

	// Notifications
	api.HandleFunc("/notifications", handler.GetNotifications).Methods("GET")

	// CORS preflight; corsMiddleware answers it
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	r.Use(recoverMiddleware(logger))
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(tokens.SessionMiddleware)

	return r
}
