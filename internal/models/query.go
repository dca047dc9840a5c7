package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Category selects one of the catalog's browse lists.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
	CategoryTopRated   Category = "top_rated"
	CategoryDiscover   Category = "discover"

	DefaultCategory = CategoryPopular
	DefaultSortBy   = "popularity.desc"
)

// ParseCategory accepts both the snake and kebab spellings ("now-playing").
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch c {
	case CategoryPopular, CategoryNowPlaying, CategoryUpcoming, CategoryTopRated, CategoryDiscover:
		return c, nil
	case "":
		return DefaultCategory, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// DiscoverFilter narrows the discover endpoint.
type DiscoverFilter struct {
	GenreIDs  []int    `json:"genre_ids,omitempty"`
	Year      *int     `json:"year,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	MaxRating *float64 `json:"max_rating,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
}

// Values encodes the filter as TMDB discover query parameters.
func (f DiscoverFilter) Values() url.Values {
	params := url.Values{}
	if len(f.GenreIDs) > 0 {
		ids := make([]string, len(f.GenreIDs))
		for i, id := range f.GenreIDs {
			ids[i] = strconv.Itoa(id)
		}
		params.Set("with_genres", strings.Join(ids, ","))
	}
	if f.Year != nil {
		params.Set("primary_release_year", strconv.Itoa(*f.Year))
	}
	if f.MinRating != nil {
		params.Set("vote_average.gte", strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
	}
	if f.MaxRating != nil {
		params.Set("vote_average.lte", strconv.FormatFloat(*f.MaxRating, 'f', -1, 64))
	}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	params.Set("sort_by", sortBy)
	return params
}

// Mood is a named preset over one or more genres.
type Mood struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	GenreIDs []int  `json:"genre_ids"`
}

// Filter builds the discover filter for the mood.
func (m Mood) Filter() DiscoverFilter {
	return DiscoverFilter{
		GenreIDs: append([]int(nil), m.GenreIDs...),
		SortBy:   DefaultSortBy,
	}
}

var moods = []Mood{
	{Key: "happy", Title: "Happy", GenreIDs: []int{35, 16}},                // Comedy, Animation
	{Key: "sad", Title: "Need Cheering Up", GenreIDs: []int{35, 10751}},    // Comedy, Family
	{Key: "excited", Title: "Thrilled", GenreIDs: []int{28, 12}},           // Action, Adventure
	{Key: "relaxed", Title: "Calm & Peaceful", GenreIDs: []int{99, 18}},    // Documentary, Drama
	{Key: "romantic", Title: "Romantic", GenreIDs: []int{10749}},           // Romance
	{Key: "thoughtful", Title: "Deep & Meaningful", GenreIDs: []int{18, 36}}, // Drama, History
}

// Moods returns the fixed mood table in display order.
func Moods() []Mood {
	out := make([]Mood, len(moods))
	copy(out, moods)
	return out
}

// LookupMood finds a mood by key, case-insensitively.
func LookupMood(key string) (Mood, bool) {
	for _, m := range moods {
		if strings.EqualFold(m.Key, strings.TrimSpace(key)) {
			return m, true
		}
	}
	return Mood{}, false
}
