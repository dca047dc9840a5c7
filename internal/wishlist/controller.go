// Package wishlist keeps the signed-in user's wishlist and follows changes
// made from other sessions through a change feed.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
)

// Store persists wishlist entries per user.
type Store interface {
	ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error)
	AddToWishlist(ctx context.Context, userID string, item models.WishlistItem) error
	RemoveFromWishlist(ctx context.Context, userID string, movieID int) error
}

// State is the observable wishlist, newest first.
type State struct {
	Items   []models.WishlistItem `json:"items"`
	Loading bool                  `json:"loading"`
}

// Contains reports whether movieID is on the list.
func (s State) Contains(movieID int) bool {
	return slices.ContainsFunc(s.Items, func(it models.WishlistItem) bool { return it.MovieID == movieID })
}

type Controller struct {
	store   Store
	session auth.Session
	feed    Feed
	notices *watch.Queue
	logger  *slog.Logger
	origin  string

	// smu serialises read-modify-write of state. gen is bumped by every
	// load and local edit; a load only applies if gen has not moved since
	// it started.
	smu      sync.Mutex
	gen      uint64
	inflight int
	state    *watch.Value[State]

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// New creates a controller. feed may be nil, in which case changes from
// other sessions are not followed. notices receives user-facing failures.
func New(store Store, session auth.Session, feed Feed, notices *watch.Queue, logger *slog.Logger) *Controller {
	if session == nil {
		session = auth.Anonymous
	}
	if notices == nil {
		notices = watch.NewQueue(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:   store,
		session: session,
		feed:    feed,
		notices: notices,
		logger:  logger,
		origin:  uuid.NewString(),
		state:   watch.NewValue(State{Items: []models.WishlistItem{}}),
	}
}

func (c *Controller) State() State { return c.state.Get() }

// Items returns the current wishlist snapshot.
func (c *Controller) Items() []models.WishlistItem { return c.state.Get().Items }

func (c *Controller) Contains(movieID int) bool { return c.state.Get().Contains(movieID) }

func (c *Controller) Subscribe() (<-chan State, func()) { return c.state.Subscribe() }

func (c *Controller) Notifications() *watch.Queue { return c.notices }

// Start loads the wishlist and begins following the change feed. Events from
// other sessions trigger a reload. It is a no-op without a signed-in user.
func (c *Controller) Start(ctx context.Context) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	c.reload(ctx, userID)
	if c.feed == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe, err := c.feed.Subscribe(ctx, userID)
	if err != nil {
		cancel()
		return fmt.Errorf("follow wishlist changes: %w", err)
	}

	c.stop = func() {
		unsubscribe()
		cancel()
	}
	c.done = make(chan struct{})
	go c.follow(ctx, userID, events, c.done)
	return nil
}

func (c *Controller) follow(ctx context.Context, userID string, events <-chan Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		if ev.Origin == c.origin {
			continue
		}
		c.logger.Debug("wishlist changed elsewhere", "user_id", userID, "op", ev.Op, "movie_id", ev.MovieID)
		c.reload(ctx, userID)
	}
}

// Stop ends the feed subscription started by Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// Close stops following changes and ends state subscriptions.
func (c *Controller) Close() {
	c.Stop()
	c.state.Close()
}

// Reload re-reads the wishlist from the store.
func (c *Controller) Reload(ctx context.Context) {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return
	}
	c.reload(ctx, userID)
}

func (c *Controller) reload(ctx context.Context, userID string) {
	gen := c.beginLoad()

	items, err := c.store.ListWishlist(ctx, userID)
	if err != nil {
		c.logger.Error("failed to load wishlist", "user_id", userID, "error", err)
		c.notices.Error("Error loading wishlist")
		c.finishLoad(gen, nil, false)
		return
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	if c.finishLoad(gen, items, true) {
		// a local edit landed while reading; read again so the result
		// covers both it and whatever triggered this load
		c.reload(ctx, userID)
	}
}

func (c *Controller) beginLoad() uint64 {
	c.smu.Lock()
	defer c.smu.Unlock()
	c.gen++
	c.inflight++
	s := c.state.Get()
	s.Loading = true
	c.state.Set(s)
	return c.gen
}

// finishLoad applies items if nothing changed the list after the load began.
// It reports whether a stale result should be read again, which is the case
// when no newer load is still running to replace it.
func (c *Controller) finishLoad(gen uint64, items []models.WishlistItem, ok bool) bool {
	c.smu.Lock()
	defer c.smu.Unlock()
	c.inflight--
	s := c.state.Get()
	s.Loading = c.inflight > 0
	stale := gen != c.gen
	if ok && !stale {
		s.Items = items
	}
	c.state.Set(s)
	if ok && stale {
		c.logger.Debug("dropping stale wishlist load", "gen", gen, "current", c.gen)
	}
	return ok && stale && c.inflight == 0
}

// Add puts movie on the wishlist. Adding a movie that is already there is a
// no-op.
func (c *Controller) Add(ctx context.Context, movie models.Movie) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}
	if c.Contains(movie.ID) {
		return nil
	}

	item := models.NewWishlistItem(movie)
	item.AddedAt = time.Now().UTC()
	if err := c.store.AddToWishlist(ctx, userID, item); err != nil {
		c.logger.Error("failed to add to wishlist", "user_id", userID, "movie_id", movie.ID, "error", err)
		c.notices.Error("Error adding movie to wishlist")
		return fmt.Errorf("add movie %d to wishlist: %w", movie.ID, err)
	}

	c.update(func(items []models.WishlistItem) []models.WishlistItem {
		if slices.ContainsFunc(items, func(it models.WishlistItem) bool { return it.MovieID == item.MovieID }) {
			return items
		}
		return append([]models.WishlistItem{item}, items...)
	})
	c.notices.Info("Added to wishlist")
	c.announce(ctx, userID, Event{Op: "add", MovieID: movie.ID})
	return nil
}

// Remove takes movieID off the wishlist.
func (c *Controller) Remove(ctx context.Context, movieID int) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}

	if err := c.store.RemoveFromWishlist(ctx, userID, movieID); err != nil {
		c.logger.Error("failed to remove from wishlist", "user_id", userID, "movie_id", movieID, "error", err)
		c.notices.Error("Error removing movie from wishlist")
		return fmt.Errorf("remove movie %d from wishlist: %w", movieID, err)
	}

	c.update(func(items []models.WishlistItem) []models.WishlistItem {
		return slices.DeleteFunc(items, func(it models.WishlistItem) bool { return it.MovieID == movieID })
	})
	c.notices.Info("Removed from wishlist")
	c.announce(ctx, userID, Event{Op: "remove", MovieID: movieID})
	return nil
}

func (c *Controller) update(fn func([]models.WishlistItem) []models.WishlistItem) {
	c.smu.Lock()
	defer c.smu.Unlock()
	c.gen++
	s := c.state.Get()
	s.Items = fn(slices.Clone(s.Items))
	if s.Items == nil {
		s.Items = []models.WishlistItem{}
	}
	c.state.Set(s)
}

// announce tells other sessions about a change. The local state is already
// up to date, so a failed publish is only logged.
func (c *Controller) announce(ctx context.Context, userID string, ev Event) {
	if c.feed == nil {
		return
	}
	ev.Origin = c.origin
	if err := c.feed.Publish(ctx, userID, ev); err != nil {
		c.logger.Warn("failed to publish wishlist change", "user_id", userID, "op", ev.Op, "error", err)
	}
}
