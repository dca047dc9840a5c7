// Package detail loads everything shown on a movie's detail screen.
package detail

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/services"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
	"github.com/Zerr0-C00L/CineShelf/internal/wishlist"
)

// Catalog is the part of the movie catalog the detail screen reads from.
type Catalog interface {
	GetMovie(ctx context.Context, id int) (*models.Movie, error)
	GetCredits(ctx context.Context, id int) (*models.Credits, error)
	GetVideos(ctx context.Context, id int) ([]models.Video, error)
}

// Wishlist is the wishlist the detail screen reflects and toggles.
type Wishlist interface {
	Subscribe() (<-chan wishlist.State, func())
	Contains(movieID int) bool
	Add(ctx context.Context, movie models.Movie) error
	Remove(ctx context.Context, movieID int) error
}

// State is the detail aggregate.
type State struct {
	MovieID    int               `json:"movie_id"`
	Movie      *models.Movie     `json:"movie,omitempty"`
	Trailer    *models.Video     `json:"trailer,omitempty"`
	InWishlist bool              `json:"in_wishlist"`
	Loading    bool              `json:"loading"`
	Err        *services.Failure `json:"error,omitempty"`
}

type Controller struct {
	catalog  Catalog
	wishlist Wishlist
	logger   *slog.Logger

	state *watch.Value[State]

	mu      sync.Mutex
	gen     uint64
	cur     State
	cancel  context.CancelFunc
	stopSub func()
	closed  bool
	done    chan struct{}
}

// New creates a controller. wl may be nil when no wishlist is available.
func New(catalog Catalog, wl Wishlist, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		catalog:  catalog,
		wishlist: wl,
		logger:   logger,
		state:    watch.NewValue(State{}),
	}
	if wl != nil {
		ch, stop := wl.Subscribe()
		c.stopSub = stop
		c.done = make(chan struct{})
		go c.followWishlist(ch)
	}
	return c
}

func (c *Controller) State() State { return c.state.Get() }

func (c *Controller) Subscribe() (<-chan State, func()) { return c.state.Subscribe() }

// followWishlist keeps InWishlist in step with the wishlist, independently of
// detail loading.
func (c *Controller) followWishlist(ch <-chan wishlist.State) {
	defer close(c.done)
	for ws := range ch {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		in := c.cur.MovieID != 0 && ws.Contains(c.cur.MovieID)
		if in != c.cur.InWishlist {
			c.cur.InWishlist = in
			c.state.Set(c.cur)
		}
		c.mu.Unlock()
	}
}

// Load fetches detail, credits and videos for movieID concurrently and
// returns the resulting state. A failed detail fetch is fatal; failed credits
// leave the cast empty and failed videos leave no trailer. A later Load
// supersedes this one, whose result is then discarded.
func (c *Controller) Load(ctx context.Context, movieID int) State {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{}
	}
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.cur = State{MovieID: movieID, Loading: true, InWishlist: c.inWishlist(movieID)}
	c.state.Set(c.cur)
	c.mu.Unlock()
	defer cancel()

	var (
		movie   *models.Movie
		credits *models.Credits
		videos  []models.Video
	)

	// Only the movie fetch fails the group. Credits and videos are optional,
	// and without shared cancellation they never abort it.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		movie, err = c.catalog.GetMovie(ctx, movieID)
		return err
	})
	g.Go(func() error {
		var err error
		credits, err = c.catalog.GetCredits(ctx, movieID)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("credits unavailable", "movie_id", movieID, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		videos, err = c.catalog.GetVideos(ctx, movieID)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("videos unavailable", "movie_id", movieID, "error", err)
		}
		return nil
	})
	movieErr := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return c.cur
	}
	c.cancel = nil

	next := State{MovieID: movieID, InWishlist: c.cur.InWishlist}
	switch {
	case movieErr != nil:
		next.Err = services.Classify(movieErr)
		c.logger.Warn("movie detail failed", "movie_id", movieID, "kind", next.Err.Kind, "error", movieErr)
	case movie == nil:
		next.Err = services.Classify(errors.New("empty movie detail"))
	default:
		m := *movie
		if credits != nil {
			m = m.WithCast(credits.Cast)
		} else {
			m.Cast = nil
		}
		next.Movie = &m
		next.Trailer = services.PickTrailer(videos)
	}

	c.cur = next
	c.state.Set(next)
	return next
}

// Retry re-runs the fan-out for movieID.
func (c *Controller) Retry(ctx context.Context, movieID int) State {
	return c.Load(ctx, movieID)
}

// ToggleWishlist adds the loaded movie to the wishlist, or removes it if it
// is already there.
func (c *Controller) ToggleWishlist(ctx context.Context) error {
	c.mu.Lock()
	movie := c.cur.Movie
	c.mu.Unlock()
	if movie == nil || c.wishlist == nil {
		return nil
	}
	if c.wishlist.Contains(movie.ID) {
		return c.wishlist.Remove(ctx, movie.ID)
	}
	return c.wishlist.Add(ctx, *movie)
}

// Close cancels an in-flight load and stops following the wishlist.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if c.stopSub != nil {
		c.stopSub()
		<-c.done
	}
	c.state.Close()
}

func (c *Controller) inWishlist(movieID int) bool {
	return c.wishlist != nil && c.wishlist.Contains(movieID)
}
