package browse

import (
	"fmt"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
)

// Mode tells whether the list is driven by a category or by free text.
type Mode string

const (
	ModeBrowse Mode = "browse"
	ModeSearch Mode = "search"
)

// State is the observable list state handed to the presentation layer.
type State struct {
	Mode     Mode                   `json:"mode"`
	Category models.Category        `json:"category"`
	Filter   *models.DiscoverFilter `json:"filter,omitempty"`
	Mood     string                 `json:"mood,omitempty"`
	Query    string                 `json:"query,omitempty"`

	Movies      []models.Movie `json:"movies"`
	CurrentPage int            `json:"current_page"`
	HasMore     bool           `json:"has_more"`
	Loading     bool           `json:"loading"`
	LoadingMore bool           `json:"loading_more"`

	// Empty is set when the first page came back with no results. It is not
	// an error.
	Empty        bool   `json:"empty"`
	EmptyMessage string `json:"empty_message,omitempty"`

	// Err replaces the list with an error view; PaginationErr is shown
	// below the already loaded movies.
	Err           *services.Failure `json:"error,omitempty"`
	PaginationErr *services.Failure `json:"pagination_error,omitempty"`

	Generation uint64 `json:"generation"`
}

// Exhausted reports whether the active query has no more pages.
func (s State) Exhausted() bool {
	return !s.Loading && s.Err == nil && !s.HasMore
}

// queryContext identifies what the list is showing.
type queryContext struct {
	mode     Mode
	category models.Category
	filter   *models.DiscoverFilter
	mood     string
	query    string
}

func defaultContext() queryContext {
	return queryContext{mode: ModeBrowse, category: models.DefaultCategory}
}

func (q queryContext) emptyMessage() string {
	if q.mode == ModeSearch {
		return fmt.Sprintf("No results found for '%s'", q.query)
	}
	return "No movies available"
}
