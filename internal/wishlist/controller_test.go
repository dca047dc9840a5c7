package wishlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
	"github.com/Zerr0-C00L/CineShelf/internal/watch"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]models.WishlistItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) AddToWishlist(ctx context.Context, userID string, item models.WishlistItem) error {
	return m.Called(ctx, userID, item).Error(0)
}

func (m *MockStore) RemoveFromWishlist(ctx context.Context, userID string, movieID int) error {
	return m.Called(ctx, userID, movieID).Error(0)
}

// memStore is a shared in-memory store standing in for the database when two
// sessions of the same user are simulated.
type memStore struct {
	mu    sync.Mutex
	items map[string][]models.WishlistItem
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string][]models.WishlistItem)}
}

func (s *memStore) ListWishlist(_ context.Context, userID string) ([]models.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WishlistItem(nil), s.items[userID]...), nil
}

func (s *memStore) AddToWishlist(_ context.Context, userID string, item models.WishlistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = append([]models.WishlistItem{item}, s.items[userID]...)
	return nil
}

func (s *memStore) RemoveFromWishlist(_ context.Context, userID string, movieID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.WishlistItem
	for _, it := range s.items[userID] {
		if it.MovieID != movieID {
			kept = append(kept, it)
		}
	}
	s.items[userID] = kept
	return nil
}

var dune = models.Movie{
	ID:           438631,
	Title:        "Dune",
	Overview:     "Paul Atreides...",
	PosterPath:   "/d5NXSklXo0qyIYkgV94XAgMIckC.jpg",
	BackdropPath: "/jYEW5xZkZk2WTrdbMGAPFuBqbDc.jpg",
	ReleaseDate:  "2021-09-15",
	VoteAverage:  7.8,
	VoteCount:    9000,
}

func TestAddSnapshotsMovie(t *testing.T) {
	store := new(MockStore)
	store.On("AddToWishlist", mock.Anything, "u-1", mock.MatchedBy(func(it models.WishlistItem) bool {
		return it.MovieID == dune.ID && it.Title == "Dune" && it.PosterPath == dune.PosterPath &&
			it.VoteAverage == 7.8 && !it.AddedAt.IsZero()
	})).Return(nil).Once()

	c := New(store, auth.StaticSession("u-1"), nil, nil, nil)
	require.NoError(t, c.Add(context.Background(), dune))

	assert.True(t, c.Contains(dune.ID))
	require.Len(t, c.Items(), 1)
	assert.Equal(t, dune.ReleaseDate, c.Items()[0].ReleaseDate)

	// already present: no second write
	require.NoError(t, c.Add(context.Background(), dune))
	store.AssertExpectations(t)

	msgs := c.Notifications().Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Added to wishlist", msgs[0].Message)
}

func TestRemove(t *testing.T) {
	store := new(MockStore)
	store.On("ListWishlist", mock.Anything, "u-1").Return([]models.WishlistItem{models.NewWishlistItem(dune)}, nil).Once()
	store.On("RemoveFromWishlist", mock.Anything, "u-1", dune.ID).Return(nil).Once()

	c := New(store, auth.StaticSession("u-1"), nil, nil, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	require.True(t, c.Contains(dune.ID))

	require.NoError(t, c.Remove(context.Background(), dune.ID))
	assert.False(t, c.Contains(dune.ID))
	assert.NotNil(t, c.Items())
	store.AssertExpectations(t)
}

func TestNoUserIsSilentNoop(t *testing.T) {
	store := new(MockStore)
	c := New(store, auth.Anonymous, nil, nil, nil)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Add(context.Background(), dune))
	require.NoError(t, c.Remove(context.Background(), dune.ID))
	c.Reload(context.Background())

	assert.Empty(t, c.Items())
	assert.Empty(t, c.Notifications().Drain())
	store.AssertNotCalled(t, "AddToWishlist", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "RemoveFromWishlist", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "ListWishlist", mock.Anything, mock.Anything)
}

func TestFailuresBecomeNotifications(t *testing.T) {
	store := new(MockStore)
	boom := errors.New("connection refused")
	store.On("ListWishlist", mock.Anything, "u-1").Return(nil, boom)
	store.On("AddToWishlist", mock.Anything, "u-1", mock.Anything).Return(boom)
	store.On("RemoveFromWishlist", mock.Anything, "u-1", 1).Return(boom)

	notices := watch.NewQueue(8)
	c := New(store, auth.StaticSession("u-1"), nil, notices, nil)

	c.Reload(context.Background())
	assert.False(t, c.State().Loading)

	err := c.Add(context.Background(), dune)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Contains(dune.ID))

	err = c.Remove(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	var got []string
	for _, n := range notices.Drain() {
		assert.True(t, n.IsError)
		got = append(got, n.Message)
	}
	assert.Equal(t, []string{"Error loading wishlist", "Error adding movie to wishlist", "Error removing movie from wishlist"}, got)
}

// gatedStore holds its first list call after reading, so a local edit can
// land while that load is still running.
type gatedStore struct {
	*memStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{memStore: newMemStore(), read: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	items, err := s.memStore.ListWishlist(ctx, userID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return items, err
}

// reloadAround runs a reload that reads the store before edit and finishes
// after it.
func reloadAround(t *testing.T, c *Controller, store *gatedStore, edit func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Reload(context.Background())
	}()
	<-store.read
	edit()
	close(store.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload did not finish")
	}
}

func TestSlowLoadKeepsConcurrentAdd(t *testing.T) {
	store := newGatedStore()
	c := New(store, auth.StaticSession("u-1"), nil, nil, nil)

	reloadAround(t, c, store, func() {
		require.NoError(t, c.Add(context.Background(), dune))
	})

	stored, err := store.memStore.ListWishlist(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, c.Contains(dune.ID))
	assert.False(t, c.State().Loading)
}

func TestSlowLoadKeepsConcurrentRemove(t *testing.T) {
	store := newGatedStore()
	store.items["u-1"] = []models.WishlistItem{models.NewWishlistItem(dune)}
	c := New(store, auth.StaticSession("u-1"), nil, nil, nil)

	reloadAround(t, c, store, func() {
		require.NoError(t, c.Remove(context.Background(), dune.ID))
	})

	assert.False(t, c.Contains(dune.ID))
	assert.Empty(t, c.Items())
	assert.False(t, c.State().Loading)
}

func newFeed(t *testing.T) *RedisFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisFeed(rdb, nil)
}

func TestRedisFeedRoundTrip(t *testing.T) {
	feed := newFeed(t)
	ctx := context.Background()

	events, stop, err := feed.Subscribe(ctx, "u-1")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, "u-2", Event{Op: "add", MovieID: 1}))
	require.NoError(t, feed.Publish(ctx, "u-1", Event{Op: "remove", MovieID: 2, Origin: "x"}))

	select {
	case ev := <-events:
		assert.Equal(t, Event{Op: "remove", MovieID: 2, Origin: "x"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	stop()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "stream closes after stop")
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after stop")
	}
}

func TestOtherSessionChangesAreFollowed(t *testing.T) {
	feed := newFeed(t)
	store := newMemStore()
	ctx := context.Background()

	phone := New(store, auth.StaticSession("u-1"), feed, nil, nil)
	laptop := New(store, auth.StaticSession("u-1"), feed, nil, nil)
	require.NoError(t, phone.Start(ctx))
	require.NoError(t, laptop.Start(ctx))
	defer phone.Close()
	defer laptop.Close()

	ch, cancel := laptop.Subscribe()
	defer cancel()

	require.NoError(t, phone.Add(ctx, dune))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Contains(dune.ID) {
				require.NoError(t, phone.Remove(ctx, dune.ID))
				assert.Eventually(t, func() bool { return !laptop.Contains(dune.ID) }, 2*time.Second, 10*time.Millisecond)
				return
			}
		case <-deadline:
			t.Fatal("laptop never saw the phone's change")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New(newMemStore(), auth.StaticSession("u-1"), newFeed(t), nil, nil)
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	c.Stop()
	c.Close()
}
