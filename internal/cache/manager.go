package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cineshelf:tmdb:"

// Manager keeps catalog responses in Redis for a fixed TTL. Cache failures
// are logged and treated as misses so the catalog keeps working without Redis.
type Manager struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates a response cache backed by rdb
func NewManager(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Manager{rdb: rdb, ttl: ttl, logger: logger}
}

func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := m.rdb.Get(ctx, hashKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (m *Manager) Set(ctx context.Context, key string, data []byte) {
	if err := m.rdb.Set(ctx, hashKey(key), data, m.ttl).Err(); err != nil {
		m.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached catalog response.
func (m *Manager) Invalidate(ctx context.Context) (int, error) {
	var removed int
	iter := m.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := m.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}
