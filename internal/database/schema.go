package database

import (
	"context"
	"database/sql"
	"fmt"
)

var upQueries = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		cover_movie_id INTEGER,
		movie_ids INTEGER[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS wishlist (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		movie_id INTEGER NOT NULL,
		title VARCHAR(500) NOT NULL,
		overview TEXT NOT NULL DEFAULT '',
		poster_path VARCHAR(255),
		backdrop_path VARCHAR(255),
		release_date VARCHAR(10),
		vote_average DOUBLE PRECISION NOT NULL DEFAULT 0,
		added_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collections_user ON collections(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_wishlist_user ON wishlist(user_id, added_at DESC)`,
}

var downQueries = []string{
	`DROP TABLE IF EXISTS wishlist`,
	`DROP TABLE IF EXISTS collections`,
	`DROP TABLE IF EXISTS users`,
}

// Migrate creates every table and index. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, upQueries)
}

// Drop removes every table created by Migrate.
func Drop(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, downQueries)
}

func run(ctx context.Context, db *sql.DB, queries []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}
