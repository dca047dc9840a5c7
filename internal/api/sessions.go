package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/browse"
	"github.com/Zerr0-C00L/CineShelf/internal/collections"
	"github.com/Zerr0-C00L/CineShelf/internal/detail"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
	"github.com/Zerr0-C00L/CineShelf/internal/wishlist"
)

// Catalog is everything the bridge needs from the movie catalog.
type Catalog interface {
	browse.Catalog
	detail.Catalog
	collections.MovieSource
	GetGenres(ctx context.Context) ([]models.Genre, error)
}

// Session bundles the controllers of one signed-in user. They share one
// notification queue.
type Session struct {
	UserID      string
	Browse      *browse.Controller
	Detail      *detail.Controller
	Collections *collections.Controller
	Wishlist    *wishlist.Controller
	Notices     *watch.Queue

	// guarded by Registry.mu
	lastSeen time.Time
	sockets  int
}

func (s *Session) close() {
	s.Detail.Close()
	s.Browse.Close()
	s.Collections.Close()
	s.Wishlist.Close()
}

// Registry keeps one Session per user, created on first use.
type Registry struct {
	catalog     Catalog
	collections collections.Store
	wishlist    wishlist.Store
	feed        wishlist.Feed
	debounce    time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. feed may be nil to disable cross-session
// wishlist updates.
func NewRegistry(catalog Catalog, cs collections.Store, ws wishlist.Store, feed wishlist.Feed, debounce time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		catalog:     catalog,
		collections: cs,
		wishlist:    ws,
		feed:        feed,
		debounce:    debounce,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Get returns the user's session, creating it if needed.
func (r *Registry) Get(userID string) *Session {
	return r.get(userID, false)
}

// Acquire is Get for a long-lived connection. The session is not swept while
// acquired; Release ends the hold.
func (r *Registry) Acquire(userID string) *Session {
	return r.get(userID, true)
}

// Release ends a hold taken by Acquire. The session's idle time starts now.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.sockets > 0 {
		s.sockets--
	}
	s.lastSeen = r.now()
}

func (r *Registry) get(userID string, hold bool) *Session {
	if s := r.lookup(userID, hold); s != nil {
		return s
	}

	// Building loads the wishlist, so it runs without r.mu held.
	fresh := r.build(userID)

	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		r.touch(s, hold)
		r.mu.Unlock()
		fresh.close()
		return s
	}
	r.sessions[userID] = fresh
	r.touch(fresh, hold)
	r.mu.Unlock()

	r.logger.Info("session started", "user_id", userID)
	return fresh
}

func (r *Registry) lookup(userID string, hold bool) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	r.touch(s, hold)
	return s
}

// touch marks s as used; r.mu must be held.
func (r *Registry) touch(s *Session, hold bool) {
	s.lastSeen = r.now()
	if hold {
		s.sockets++
	}
}

func (r *Registry) build(userID string) *Session {
	logger := r.logger.With("user_id", userID)
	identity := auth.StaticSession(userID)
	notices := watch.NewQueue(32)

	wl := wishlist.New(r.wishlist, identity, r.feed, notices, logger)
	if err := wl.Start(context.Background()); err != nil {
		logger.Warn("wishlist live updates unavailable", "error", err)
	}

	return &Session{
		UserID:      userID,
		Browse:      browse.New(r.catalog, browse.WithDebounce(r.debounce), browse.WithLogger(logger)),
		Detail:      detail.New(r.catalog, wl, logger),
		Collections: collections.New(r.collections, r.catalog, identity, notices, logger),
		Wishlist:    wl,
		Notices:     notices,
	}
}

// Sweep closes sessions idle for longer than maxIdle and reports how many
// were closed. Sessions with an open socket are never idle.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.sockets == 0 && r.now().Sub(s.lastSeen) > maxIdle {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.close()
		r.logger.Info("session closed", "user_id", s.UserID, "reason", "idle")
	}
	return len(idle)
}

// Remove closes the user's session if there is one.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		s.close()
		r.logger.Info("session closed", "user_id", userID, "reason", "logout")
	}
}

// Close ends every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
