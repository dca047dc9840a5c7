package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

// CollectionStore handles database operations for collections. Every query
// is scoped to the owning user.
type CollectionStore struct {
	db *sql.DB
}

// NewCollectionStore creates a new CollectionStore
func NewCollectionStore(db *sql.DB) *CollectionStore {
	return &CollectionStore{db: db}
}

const collectionColumns = `id, user_id, name, description, cover_movie_id, movie_ids, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*models.Collection, error) {
	var (
		c           models.Collection
		description sql.NullString
		cover       sql.NullInt64
		ids         pq.Int64Array
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &description, &cover, &ids, &c.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		c.Description = &description.String
	}
	if cover.Valid {
		id := int(cover.Int64)
		c.CoverMovieID = &id
	}
	c.MovieIDs = make([]int, len(ids))
	for i, id := range ids {
		c.MovieIDs[i] = int(id)
	}
	return &c, nil
}

// checkID rejects ids that cannot match the UUID primary key, so a malformed
// id reads as a missing collection instead of a query error.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	return nil
}

func toInt64Array(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// CreateCollection inserts c as given; the caller assigns its id and time.
func (s *CollectionStore) CreateCollection(ctx context.Context, c *models.Collection) error {
	query := `
		INSERT INTO collections (id, user_id, name, description, cover_movie_id, movie_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.Description,
		c.CoverMovieID,
		toInt64Array(c.MovieIDs),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

// ListCollections returns the user's collections, newest first.
func (s *CollectionStore) ListCollections(ctx context.Context, userID string) ([]models.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	collections := []models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

// GetCollection retrieves a collection by ID
func (s *CollectionStore) GetCollection(ctx context.Context, userID, id string) (*models.Collection, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1 AND user_id = $2`

	c, err := scanCollection(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", id, err)
	}
	return c, nil
}

// AddMovie appends movieID unless it is already in the set. Adding a movie
// that is already there succeeds without changing anything.
func (s *CollectionStore) AddMovie(ctx context.Context, userID, id string, movieID int) error {
	if err := checkID(id); err != nil {
		return err
	}
	query := `
		UPDATE collections
		SET movie_ids = array_append(movie_ids, $3)
		WHERE id = $1 AND user_id = $2 AND NOT ($3 = ANY(movie_ids))
	`
	res, err := s.db.ExecContext(ctx, query, id, userID, movieID)
	if err != nil {
		return fmt.Errorf("add movie %d to collection %s: %w", movieID, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return s.mustExist(ctx, userID, id)
}

// RemoveMovie drops movieID from the set and clears the cover if it pointed
// at that movie.
func (s *CollectionStore) RemoveMovie(ctx context.Context, userID, id string, movieID int) error {
	query := `
		UPDATE collections
		SET movie_ids = array_remove(movie_ids, $3),
			cover_movie_id = CASE WHEN cover_movie_id = $3 THEN NULL ELSE cover_movie_id END
		WHERE id = $1 AND user_id = $2
	`
	return s.execOne(ctx, query, id, userID, movieID)
}

// SetCover sets or, with a nil movieID, clears the cover movie.
func (s *CollectionStore) SetCover(ctx context.Context, userID, id string, movieID *int) error {
	query := `UPDATE collections SET cover_movie_id = $3 WHERE id = $1 AND user_id = $2`
	return s.execOne(ctx, query, id, userID, movieID)
}

// DeleteCollection removes a collection
func (s *CollectionStore) DeleteCollection(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM collections WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *CollectionStore) execOne(ctx context.Context, query string, id, userID string, args ...any) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, append([]any{id, userID}, args...)...)
	if err != nil {
		return fmt.Errorf("update collection %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *CollectionStore) mustExist(ctx context.Context, userID, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM collections WHERE id = $1 AND user_id = $2)`, id, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return nil
}
