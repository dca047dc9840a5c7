// Package collections manages the signed-in user's named movie collections.
//
// Every operation is a silent no-op when nobody is signed in. Mutation
// failures are reported through the notification queue rather than kept in
// state.
package collections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
)

var (
	ErrNotFound  = errors.New("collection not found")
	ErrEmptyName = errors.New("collection name is required")
)

const (
	msgAlreadyInCollection = "Movie is already in this collection"
	msgAdded               = "Movie added to collection"
	msgRemoved             = "Movie removed from collection"
	msgCreated             = "Collection created"
	msgDeleted             = "Collection deleted successfully"
	msgCoverSet            = "Collection cover updated"
	msgNotFound            = "Collection not found"
	msgEmptyName           = "Please enter a collection name"
)

// Store persists collections. Lookups of another user's collection must fail
// with models.ErrNotFound.
type Store interface {
	ListCollections(ctx context.Context, userID string) ([]models.Collection, error)
	GetCollection(ctx context.Context, userID, id string) (*models.Collection, error)
	CreateCollection(ctx context.Context, c *models.Collection) error
	AddMovie(ctx context.Context, userID, id string, movieID int) error
	RemoveMovie(ctx context.Context, userID, id string, movieID int) error
	SetCover(ctx context.Context, userID, id string, movieID *int) error
	DeleteCollection(ctx context.Context, userID, id string) error
}

// MovieSource resolves movie ids and mood lists.
type MovieSource interface {
	GetMovie(ctx context.Context, id int) (*models.Movie, error)
	Discover(ctx context.Context, filter models.DiscoverFilter, page int) (*models.Page, error)
}

// State is the observable list of the user's collections, newest first.
type State struct {
	Collections []models.Collection `json:"collections"`
	Loading     bool                `json:"loading"`
}

// Details is a collection with its movies resolved.
type Details struct {
	Collection models.Collection `json:"collection"`
	Movies     []models.Movie    `json:"movies"`
}

type Controller struct {
	store   Store
	movies  MovieSource
	session auth.Session
	notices *watch.Queue
	logger  *slog.Logger
	now     func() time.Time

	// mu guards state. Every load bumps gen and applies its result only if
	// no later load started meanwhile; mutations reload after writing.
	mu       sync.Mutex
	gen      uint64
	inflight int
	state    *watch.Value[State]
}

func New(store Store, movies MovieSource, session auth.Session, notices *watch.Queue, logger *slog.Logger) *Controller {
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
		movies:  movies,
		session: session,
		notices: notices,
		logger:  logger,
		now:     time.Now,
		state:   watch.NewValue(State{Collections: []models.Collection{}}),
	}
}

func (c *Controller) State() State { return c.state.Get() }

func (c *Controller) Subscribe() (<-chan State, func()) { return c.state.Subscribe() }

// Notifications is the fire-and-clear channel for transient messages.
func (c *Controller) Notifications() *watch.Queue { return c.notices }

func (c *Controller) Close() { c.state.Close() }

// Load refreshes the user's collections.
func (c *Controller) Load(ctx context.Context) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}
	return c.load(ctx, userID)
}

func (c *Controller) load(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.inflight++
	c.setLoading()
	c.mu.Unlock()

	list, err := c.store.ListCollections(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	c.setLoading()
	if err != nil {
		c.logger.Error("failed to load collections", "user_id", userID, "error", err)
		c.notices.Error("Failed to load collections")
		return fmt.Errorf("list collections: %w", err)
	}
	if gen != c.gen {
		c.logger.Debug("dropping stale collections load", "gen", gen, "current", c.gen)
		return nil
	}
	if list == nil {
		list = []models.Collection{}
	}
	c.state.Set(State{Collections: list, Loading: c.inflight > 0})
	return nil
}

// setLoading mirrors the in-flight count into state; c.mu must be held.
func (c *Controller) setLoading() {
	s := c.state.Get()
	s.Loading = c.inflight > 0
	c.state.Set(s)
}

// Create makes a new empty collection owned by the current user.
func (c *Controller) Create(ctx context.Context, name string, description *string) (*models.Collection, error) {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		c.notices.Error(msgEmptyName)
		return nil, ErrEmptyName
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		if d == "" {
			description = nil
		} else {
			description = &d
		}
	}

	col := &models.Collection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		MovieIDs:    []int{},
		CreatedAt:   c.now().UTC(),
	}
	if err := c.store.CreateCollection(ctx, col); err != nil {
		c.logger.Error("failed to create collection", "user_id", userID, "name", name, "error", err)
		c.notices.Error("Failed to create collection")
		return nil, fmt.Errorf("create collection: %w", err)
	}

	c.notices.Info(msgCreated)
	c.reload(ctx, userID)
	return col, nil
}

// AddMovie adds movieID to the collection. A movie that is already there is
// reported and not written again.
func (c *Controller) AddMovie(ctx context.Context, collectionID string, movieID int) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}

	col, err := c.get(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	if col.Contains(movieID) {
		c.notices.Info(msgAlreadyInCollection)
		return nil
	}

	if err := c.store.AddMovie(ctx, userID, collectionID, movieID); err != nil {
		return c.mutationFailed("add movie to collection", userID, collectionID, err)
	}
	c.notices.Info(msgAdded)
	c.reload(ctx, userID)
	return nil
}

func (c *Controller) RemoveMovie(ctx context.Context, collectionID string, movieID int) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}
	if err := c.store.RemoveMovie(ctx, userID, collectionID, movieID); err != nil {
		return c.mutationFailed("remove movie from collection", userID, collectionID, err)
	}
	c.notices.Info(msgRemoved)
	c.reload(ctx, userID)
	return nil
}

// SetCover picks the movie whose poster represents the collection. A nil
// movieID clears it.
func (c *Controller) SetCover(ctx context.Context, collectionID string, movieID *int) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}
	if err := c.store.SetCover(ctx, userID, collectionID, movieID); err != nil {
		return c.mutationFailed("set collection cover", userID, collectionID, err)
	}
	c.notices.Info(msgCoverSet)
	c.reload(ctx, userID)
	return nil
}

func (c *Controller) Delete(ctx context.Context, collectionID string) error {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil
	}
	if err := c.store.DeleteCollection(ctx, userID, collectionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.notices.Error(msgNotFound)
			return ErrNotFound
		}
		c.logger.Error("failed to delete collection", "user_id", userID, "collection_id", collectionID, "error", err)
		c.notices.Error("Failed to delete collection")
		return fmt.Errorf("delete collection %s: %w", collectionID, err)
	}
	c.notices.Info(msgDeleted)
	c.reload(ctx, userID)
	return nil
}

// LoadDetails resolves every movie of the collection, in collection order.
// Movies that fail to load are skipped.
func (c *Controller) LoadDetails(ctx context.Context, collectionID string) (*Details, error) {
	userID, ok := c.session.CurrentUser()
	if !ok {
		return nil, nil
	}

	col, err := c.get(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}

	movies := make([]models.Movie, 0, len(col.MovieIDs))
	for _, id := range col.MovieIDs {
		m, err := c.movies.GetMovie(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("skipping movie in collection", "collection_id", collectionID, "movie_id", id, "error", err)
			continue
		}
		movies = append(movies, *m)
	}
	return &Details{Collection: *col, Movies: movies}, nil
}

// MoodMovies returns the first discover page for a mood.
func (c *Controller) MoodMovies(ctx context.Context, mood models.Mood) ([]models.Movie, error) {
	page, err := c.movies.Discover(ctx, mood.Filter(), 1)
	if err != nil {
		c.logger.Warn("mood discover failed", "mood", mood.Key, "error", err)
		return nil, fmt.Errorf("discover movies for mood %s: %w", mood.Key, err)
	}
	return page.Results, nil
}

func (c *Controller) get(ctx context.Context, userID, collectionID string) (*models.Collection, error) {
	col, err := c.store.GetCollection(ctx, userID, collectionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.notices.Error(msgNotFound)
			return nil, ErrNotFound
		}
		c.logger.Error("failed to get collection", "user_id", userID, "collection_id", collectionID, "error", err)
		c.notices.Error("Error loading collection")
		return nil, fmt.Errorf("get collection %s: %w", collectionID, err)
	}
	return col, nil
}

func (c *Controller) mutationFailed(op, userID, collectionID string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		c.notices.Error(msgNotFound)
		return ErrNotFound
	}
	c.logger.Error("collection update failed", "op", op, "user_id", userID, "collection_id", collectionID, "error", err)
	c.notices.Error("Failed to update collection")
	return fmt.Errorf("%s: %w", op, err)
}

// reload refreshes state after a successful mutation. Its failure is already
// reported by load and does not fail the mutation.
func (c *Controller) reload(ctx context.Context, userID string) {
	_ = c.load(ctx, userID)
}
