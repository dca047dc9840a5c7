package wishlist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "cineshelf:wishlist:"

// Event announces a change to one user's wishlist.
type Event struct {
	Op      string `json:"op"` // "add" or "remove"
	MovieID int    `json:"movie_id"`
	// Origin identifies the controller that made the change.
	Origin string `json:"origin,omitempty"`
}

// Feed carries wishlist change events between sessions of the same user.
type Feed interface {
	Publish(ctx context.Context, userID string, ev Event) error
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
}

// RedisFeed is a Feed over Redis pub/sub, one channel per user.
type RedisFeed struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{rdb: rdb, logger: logger}
}

func channel(userID string) string {
	return channelPrefix + userID
}

func (f *RedisFeed) Publish(ctx context.Context, userID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode wishlist event: %w", err)
	}
	if err := f.rdb.Publish(ctx, channel(userID), string(data)).Err(); err != nil {
		return fmt.Errorf("publish wishlist event: %w", err)
	}
	return nil
}

// Subscribe returns events for userID until ctx ends or the returned stop
// func is called. The subscription is confirmed before Subscribe returns.
func (f *RedisFeed) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	sub := f.rdb.Subscribe(ctx, channel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe wishlist feed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("dropping malformed wishlist event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
