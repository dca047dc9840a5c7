package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

const (
	collectionA       = "5b1f0f3e-8c1d-4f7a-9a57-0d2c6e4b1a01"
	collectionB       = "9e4a7c22-31b6-4d0e-8f43-7c5d2a9e6b02"
	collectionMissing = "c0ffee00-0000-4000-8000-000000000009"
)

var collectionCols = []string{"id", "user_id", "name", "description", "cover_movie_id", "movie_ids", "created_at"}

func TestListCollections(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM collections WHERE user_id = $1 ORDER BY created_at DESC")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(collectionCols).
			AddRow(collectionB, "u-1", "Nolan", "Mind benders", 27205, "{27205,157336}", created).
			AddRow(collectionA, "u-1", "Empty", nil, nil, "{}", created.Add(-time.Hour)))

	list, err := NewCollectionStore(db).ListCollections(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, collectionB, list[0].ID)
	require.NotNil(t, list[0].Description)
	assert.Equal(t, "Mind benders", *list[0].Description)
	require.NotNil(t, list[0].CoverMovieID)
	assert.Equal(t, 27205, *list[0].CoverMovieID)
	assert.Equal(t, []int{27205, 157336}, list[0].MovieIDs)
	assert.Equal(t, created, list[0].CreatedAt)

	assert.Nil(t, list[1].Description)
	assert.Nil(t, list[1].CoverMovieID)
	assert.Equal(t, []int{}, list[1].MovieIDs)
}

func TestGetCollectionNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM collections WHERE id = $1 AND user_id = $2")).
		WithArgs(collectionMissing, "u-1").
		WillReturnRows(sqlmock.NewRows(collectionCols))

	_, err := NewCollectionStore(db).GetCollection(context.Background(), "u-1", collectionMissing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMalformedCollectionIDIsNotFound(t *testing.T) {
	db, _ := newMock(t)
	store := NewCollectionStore(db)
	ctx := context.Background()
	cover := 1

	// no query may reach the database: the id column is a UUID
	_, err := store.GetCollection(ctx, "u-1", "abc")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, store.AddMovie(ctx, "u-1", "abc", 1), ErrNotFound)
	assert.ErrorIs(t, store.RemoveMovie(ctx, "u-1", "abc", 1), ErrNotFound)
	assert.ErrorIs(t, store.SetCover(ctx, "u-1", "abc", &cover), ErrNotFound)
	assert.ErrorIs(t, store.DeleteCollection(ctx, "u-1", "abc"), ErrNotFound)
}

func TestCreateCollection(t *testing.T) {
	db, mock := newMock(t)
	desc := "weekend"
	c := &models.Collection{ID: collectionA, UserID: "u-1", Name: "Faves", Description: &desc, MovieIDs: []int{}, CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO collections")).
		WithArgs(collectionA, "u-1", "Faves", "weekend", nil, "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCollectionStore(db).CreateCollection(context.Background(), c))
}

func TestAddMovieIsIdempotent(t *testing.T) {
	db, mock := newMock(t)
	store := NewCollectionStore(db)
	add := regexp.QuoteMeta("SET movie_ids = array_append(movie_ids, $3)") + `(?s).*` + regexp.QuoteMeta("NOT ($3 = ANY(movie_ids))")

	mock.ExpectExec(add).WithArgs(collectionA, "u-1", 550).WillReturnResult(sqlmock.NewResult(0, 1))
	// second add matches no row because the id is already in the set
	mock.ExpectExec(add).WithArgs(collectionA, "u-1", 550).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(collectionA, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, store.AddMovie(context.Background(), "u-1", collectionA, 550))
	require.NoError(t, store.AddMovie(context.Background(), "u-1", collectionA, 550))
}

func TestAddMovieUnknownCollection(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("array_append")).WithArgs(collectionMissing, "u-1", 1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(collectionMissing, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := NewCollectionStore(db).AddMovie(context.Background(), "u-1", collectionMissing, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMovieClearsCover(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("array_remove(movie_ids, $3)") + `(?s).*` + regexp.QuoteMeta("CASE WHEN cover_movie_id = $3 THEN NULL")).
		WithArgs(collectionA, "u-1", 550).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCollectionStore(db).RemoveMovie(context.Background(), "u-1", collectionA, 550))
}

func TestSetCoverAndDelete(t *testing.T) {
	db, mock := newMock(t)
	store := NewCollectionStore(db)
	cover := 13

	mock.ExpectExec(regexp.QuoteMeta("SET cover_movie_id = $3")).WithArgs(collectionA, "u-1", 13).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET cover_movie_id = $3")).WithArgs(collectionA, "u-1", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collections")).WithArgs(collectionA, "u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collections")).WithArgs(collectionA, "u-2").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.SetCover(context.Background(), "u-1", collectionA, &cover))
	require.NoError(t, store.SetCover(context.Background(), "u-1", collectionA, nil))
	require.NoError(t, store.DeleteCollection(context.Background(), "u-1", collectionA))
	assert.ErrorIs(t, store.DeleteCollection(context.Background(), "u-2", collectionA), ErrNotFound)
}

func TestWishlistStore(t *testing.T) {
	db, mock := newMock(t)
	store := NewWishlistStore(db)
	added := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, movie_id) DO NOTHING")).
		WithArgs("u-1", 438631, "Dune", "Paul...", "/p.jpg", nil, "2021-09-15", 7.8, added).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wishlist")).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "title", "overview", "poster_path", "backdrop_path", "release_date", "vote_average", "added_at"}).
			AddRow(438631, "Dune", "Paul...", "/p.jpg", nil, "2021-09-15", 7.8, added))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM wishlist")).WithArgs("u-1", 438631).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	item := models.WishlistItem{MovieID: 438631, Title: "Dune", Overview: "Paul...", PosterPath: "/p.jpg", ReleaseDate: "2021-09-15", VoteAverage: 7.8, AddedAt: added}
	require.NoError(t, store.AddToWishlist(ctx, "u-1", item))

	items, err := store.ListWishlist(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []models.WishlistItem{item}, items)

	require.NoError(t, store.RemoveFromWishlist(ctx, "u-1", 438631))
}

func TestCreateUserHashesPassword(t *testing.T) {
	db, mock := newMock(t)
	var hashed string
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", hashArg{&hashed}).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	user, err := NewUserStore(db).CreateUser(context.Background(), " alice ", "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Len(t, user.ID, 36)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("hunter22")))
}

// hashArg matches any string argument and captures it.
type hashArg struct{ dst *string }

func (h hashArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*h.dst = s
	}
	return ok && s != "hunter22"
}

func TestCreateUserDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := NewUserStore(db).CreateUser(context.Background(), "alice", "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestVerifyPassword(t *testing.T) {
	db, mock := newMock(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	cols := []string{"id", "username", "email", "password", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u-1", "alice", "a@example.com", string(hash), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u-1", "alice", "a@example.com", string(hash), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(cols))

	store := NewUserStore(db)
	user, err := store.VerifyPassword(context.Background(), "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	_, err = store.VerifyPassword(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.VerifyPassword(context.Background(), "bob", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMigrateRunsInTransaction(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	for range upQueries {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	require.NoError(t, Migrate(context.Background(), db))
}

func TestDropRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS wishlist").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()
	assert.Error(t, Drop(context.Background(), db))
}
