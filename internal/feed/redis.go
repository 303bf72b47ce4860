package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisFeed publishes change events to one Redis pub/sub channel. It
// shares the process's Redis client; the hub subscribes on the same
// client and the caller owns the client's lifecycle.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

func NewRedisFeedWithClient(client *redis.Client, channel string) *RedisFeed {
	return &RedisFeed{client: client, channel: channel}
}

func (f *RedisFeed) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}
