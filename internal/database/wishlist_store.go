package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

// WishlistStore keeps per-user movie snapshots.
type WishlistStore struct {
	db *sql.DB
}

func NewWishlistStore(db *sql.DB) *WishlistStore {
	return &WishlistStore{db: db}
}

// AddToWishlist stores the snapshot. An existing entry is left untouched.
func (s *WishlistStore) AddToWishlist(ctx context.Context, userID string, item models.WishlistItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlist (user_id, movie_id, title, overview, poster_path, backdrop_path, release_date, vote_average, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, movie_id) DO NOTHING
	`, userID, item.MovieID, item.Title, item.Overview,
		nullString(item.PosterPath), nullString(item.BackdropPath), nullString(item.ReleaseDate),
		item.VoteAverage, item.AddedAt)
	if err != nil {
		return fmt.Errorf("add movie %d to wishlist: %w", item.MovieID, err)
	}
	return nil
}

func (s *WishlistStore) RemoveFromWishlist(ctx context.Context, userID string, movieID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM wishlist WHERE user_id = $1 AND movie_id = $2", userID, movieID)
	if err != nil {
		return fmt.Errorf("remove movie %d from wishlist: %w", movieID, err)
	}
	return nil
}

// ListWishlist returns the user's wishlist, most recently added first.
func (s *WishlistStore) ListWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT movie_id, title, overview, poster_path, backdrop_path, release_date, vote_average, added_at
		FROM wishlist
		WHERE user_id = $1
		ORDER BY added_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var (
			item                          models.WishlistItem
			poster, backdrop, releaseDate sql.NullString
		)
		if err := rows.Scan(&item.MovieID, &item.Title, &item.Overview, &poster, &backdrop,
			&releaseDate, &item.VoteAverage, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		item.PosterPath = poster.String
		item.BackdropPath = backdrop.String
		item.ReleaseDate = releaseDate.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
