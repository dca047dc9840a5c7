package models

import (
	"errors"
	"strconv"
	"time"
)

// Movie is a catalog entry. Values are treated as immutable; enrichment
// (cast from the detail flow) works on a copy.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path,omitempty"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Genres           []Genre `json:"genres,omitempty"`
	Runtime          *int    `json:"runtime,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Cast             []Cast  `json:"cast,omitempty"`
}

// WithCast returns a copy of m with the cast list attached.
func (m Movie) WithCast(cast []Cast) Movie {
	m.Cast = append([]Cast(nil), cast...)
	return m
}

// Year returns the release year, or 0 when the date is missing or malformed.
func (m Movie) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Page is one batch of results plus pagination metadata.
type Page struct {
	Results      []Movie `json:"results"`
	Page         int     `json:"page"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// HasMore reports whether another page exists after this one.
func (p *Page) HasMore() bool {
	return p.Page < p.TotalPages
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Cast struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path,omitempty"`
	Order       int    `json:"order"`
}

type Credits struct {
	ID   int    `json:"id"`
	Cast []Cast `json:"cast"`
}

// Video is a trailer, teaser, clip or featurette attached to a movie.
type Video struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// WatchURL returns a playable URL for the hosting site, empty if unknown.
func (v Video) WatchURL() string {
	switch v.Site {
	case "YouTube":
		return "https://www.youtube.com/watch?v=" + v.Key
	case "Vimeo":
		return "https://vimeo.com/" + v.Key
	}
	return ""
}

// Collection is a user-defined, named set of movies.
type Collection struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	CoverMovieID *int      `json:"cover_movie_id,omitempty"`
	MovieIDs     []int     `json:"movie_ids"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contains reports whether movieID is already part of the collection.
func (c *Collection) Contains(movieID int) bool {
	for _, id := range c.MovieIDs {
		if id == movieID {
			return true
		}
	}
	return false
}

// WishlistItem is the movie snapshot stored under a user's wishlist.
type WishlistItem struct {
	MovieID      int       `json:"movie_id"`
	Title        string    `json:"title"`
	Overview     string    `json:"overview"`
	PosterPath   string    `json:"poster_path,omitempty"`
	BackdropPath string    `json:"backdrop_path,omitempty"`
	ReleaseDate  string    `json:"release_date"`
	VoteAverage  float64   `json:"vote_average"`
	AddedAt      time.Time `json:"added_at"`
}

// NewWishlistItem snapshots the fields of m that the wishlist keeps.
func NewWishlistItem(m Movie) WishlistItem {
	return WishlistItem{
		MovieID:      m.ID,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		ReleaseDate:  m.ReleaseDate,
		VoteAverage:  m.VoteAverage,
	}
}

// Movie converts the snapshot back to a catalog movie.
func (w WishlistItem) Movie() Movie {
	return Movie{
		ID:           w.MovieID,
		Title:        w.Title,
		Overview:     w.Overview,
		PosterPath:   w.PosterPath,
		BackdropPath: w.BackdropPath,
		ReleaseDate:  w.ReleaseDate,
		VoteAverage:  w.VoteAverage,
	}
}

// ErrNotFound is returned by stores when a row does not exist or is not owned
// by the requesting user.
var ErrNotFound = errors.New("not found")
