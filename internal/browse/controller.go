// Package browse implements the movie list controller: category browsing,
// discover filters and moods, debounced search and incremental pagination
// against the paged catalog.
//
// Every switch of query context bumps a generation number. Fetch results are
// applied only if their generation is still current when they complete, so a
// superseded request can never write into the list.
package browse

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
)

const DefaultDebounce = 300 * time.Millisecond

type failedOp int

const (
	failedNone failedOp = iota
	failedInitial
	failedPage
)

// Catalog is the part of the movie catalog the list reads from.
type Catalog interface {
	FetchByCategory(ctx context.Context, category models.Category, filter *models.DiscoverFilter, page int) (*models.Page, error)
	Search(ctx context.Context, query string, page int) (*models.Page, error)
}

type Option func(*Controller)

// WithDebounce sets the quiet period before a search fires.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type Controller struct {
	catalog  Catalog
	debounce time.Duration
	logger   *slog.Logger

	root       context.Context
	cancelRoot context.CancelFunc
	state      *watch.Value[State]

	mu         sync.Mutex
	closed     bool
	qc         queryContext
	lastBrowse queryContext
	gen        uint64

	movies      []models.Movie
	page        int
	hasMore     bool
	loading     bool
	loadingMore bool
	empty       bool
	err         *services.Failure
	pageErr     *services.Failure
	failed      failedOp

	timer       *time.Timer
	cancelFetch context.CancelFunc
	cancelPage  context.CancelFunc
}

// New creates a controller and starts loading page 1 of the default category.
func New(catalog Catalog, opts ...Option) *Controller {
	root, cancel := context.WithCancel(context.Background())
	c := &Controller{
		catalog:    catalog,
		debounce:   DefaultDebounce,
		logger:     slog.Default(),
		root:       root,
		cancelRoot: cancel,
		qc:         defaultContext(),
		lastBrowse: defaultContext(),
		state:      watch.NewValue(State{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.switchLocked(c.qc, false)
	c.mu.Unlock()
	return c
}

// State returns a snapshot of the list state.
func (c *Controller) State() State {
	return c.state.Get()
}

// Subscribe streams list state changes, starting with the current state.
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.state.Subscribe()
}

// SetQuery switches to search mode for text, or back to browse mode with the
// last selected category when text is blank. Searches are debounced.
func (c *Controller) SetQuery(text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if text == "" {
		c.switchLocked(c.lastBrowse, false)
		return
	}
	c.switchLocked(queryContext{mode: ModeSearch, category: c.lastBrowse.category, query: text}, true)
}

// SetCategory switches browse category and reloads immediately.
func (c *Controller) SetCategory(category models.Category) {
	c.browse(queryContext{mode: ModeBrowse, category: category})
}

// SetFilter switches to the discover list narrowed by filter.
func (c *Controller) SetFilter(filter models.DiscoverFilter) {
	c.browse(queryContext{mode: ModeBrowse, category: models.CategoryDiscover, filter: &filter})
}

// SetMood switches to the discover list for the mood's genres.
func (c *Controller) SetMood(mood models.Mood) {
	f := mood.Filter()
	c.browse(queryContext{mode: ModeBrowse, category: models.CategoryDiscover, filter: &f, mood: mood.Key})
}

func (c *Controller) browse(qc queryContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.lastBrowse = qc
	c.switchLocked(qc, false)
}

// Refresh reloads the active query from page 1.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.switchLocked(c.qc, false)
}

// LoadNextPage fetches and appends the next page. It reports whether a fetch
// was started; it is a no-op while anything is loading, after the last page,
// or while an initial-load error is shown.
func (c *Controller) LoadNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.hasMore || c.loading || c.loadingMore || c.err != nil {
		return false
	}

	ctx, cancel := context.WithCancel(c.root)
	c.cancelPage = cancel
	c.loadingMore = true
	c.pageErr = nil
	c.failed = failedNone
	c.publishLocked()

	go c.fetch(ctx, c.gen, c.qc, c.page)
	return true
}

// Retry re-issues the last failed load for the active query. After a
// pagination failure the loaded movies are kept; after an initial failure the
// list restarts from page 1.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	switch c.failed {
	case failedInitial:
		defer c.mu.Unlock()
		if c.closed {
			return false
		}
		c.switchLocked(c.qc, false)
		return true
	case failedPage:
		c.pageErr = nil
		c.failed = failedNone
		c.mu.Unlock()
		return c.LoadNextPage()
	}
	c.mu.Unlock()
	return false
}

// Close cancels pending and in-flight work and ends subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	c.cancelRoot()
	c.state.Close()
}

// switchLocked makes qc the active query context, drops everything loaded
// for the previous one and schedules page 1.
func (c *Controller) switchLocked(qc queryContext, debounce bool) {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	if c.cancelPage != nil {
		c.cancelPage()
		c.cancelPage = nil
	}

	c.qc = qc
	c.movies = nil
	c.page = 1
	c.hasMore = false
	c.loading = true
	c.loadingMore = false
	c.empty = false
	c.err = nil
	c.pageErr = nil
	c.failed = failedNone
	c.publishLocked()

	gen := c.gen
	if debounce && c.debounce > 0 {
		c.timer = time.AfterFunc(c.debounce, func() { c.startInitial(gen) })
		return
	}
	c.startInitialLocked(gen)
}

func (c *Controller) startInitial(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startInitialLocked(gen)
}

func (c *Controller) startInitialLocked(gen uint64) {
	if c.closed || gen != c.gen {
		return
	}
	c.timer = nil
	ctx, cancel := context.WithCancel(c.root)
	c.cancelFetch = cancel
	go c.fetch(ctx, gen, c.qc, 1)
}

func (c *Controller) fetch(ctx context.Context, gen uint64, qc queryContext, page int) {
	var (
		result *models.Page
		err    error
	)
	if qc.mode == ModeSearch {
		result, err = c.catalog.Search(ctx, qc.query, page)
	} else {
		result, err = c.catalog.FetchByCategory(ctx, qc.category, qc.filter, page)
	}
	c.apply(gen, page, result, err)
}

// apply writes a completed fetch into the list if its generation is still
// the active one.
func (c *Controller) apply(gen uint64, page int, result *models.Page, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if gen != c.gen {
		c.logger.Debug("dropping stale page", "generation", gen, "current", c.gen, "page", page)
		return
	}
	if err == nil && result == nil {
		err = errors.New("catalog returned no page")
	}

	if page == 1 {
		c.loading = false
		c.cancelFetch = nil
	} else {
		c.loadingMore = false
		c.cancelPage = nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		failure := services.Classify(err)
		if page == 1 {
			c.err = failure
			c.failed = failedInitial
		} else {
			c.pageErr = failure
			c.failed = failedPage
		}
		c.logger.Warn("movie list fetch failed", "mode", c.qc.mode, "category", c.qc.category, "page", page, "kind", failure.Kind, "error", err)
		c.publishLocked()
		return
	}

	c.movies = append(c.movies, result.Results...)
	c.page = page + 1
	c.hasMore = page < result.TotalPages
	if page == 1 && len(result.Results) == 0 {
		c.empty = true
		c.hasMore = false
	}
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	s := State{
		Mode:          c.qc.mode,
		Category:      c.qc.category,
		Filter:        c.qc.filter,
		Mood:          c.qc.mood,
		Query:         c.qc.query,
		Movies:        slices.Clone(c.movies),
		CurrentPage:   c.page,
		HasMore:       c.hasMore,
		Loading:       c.loading,
		LoadingMore:   c.loadingMore,
		Empty:         c.empty,
		Err:           c.err,
		PaginationErr: c.pageErr,
		Generation:    c.gen,
	}
	if s.Movies == nil {
		s.Movies = []models.Movie{}
	}
	if c.empty {
		s.EmptyMessage = c.qc.emptyMessage()
	}
	c.state.Set(s)
}
