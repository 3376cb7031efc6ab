// Redis audit mirror, grounded on internal/infra/redis_adapter.go's use of
// github.com/redis/go-redis/v9. Rather than durable storage, this sink
// publishes each event to a pub/sub channel so external dashboards and the
// demo harness can tail the audit trail live, and pushes onto a capped list
// for late subscribers to catch up on recent history.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisRecentListMaxLen = 1000

// RedisMirror publishes audit events to a Redis pub/sub channel and a
// capped recent-history list.
type RedisMirror struct {
	client  *redis.Client
	channel string
	listKey string
}

// NewRedisMirror builds a mirror against an already-configured client.
// channel is the pub/sub channel name; the recent-history list is stored
// under channel+":recent".
func NewRedisMirror(client *redis.Client, channel string) *RedisMirror {
	return &RedisMirror{
		client:  client,
		channel: channel,
		listKey: channel + ":recent",
	}
}

// Write implements Sink.
func (m *RedisMirror) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal event for redis: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.Publish(ctx, m.channel, payload)
	pipe.LPush(ctx, m.listKey, payload)
	pipe.LTrim(ctx, m.listKey, 0, redisRecentListMaxLen-1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("audit: redis mirror pipeline: %w", err)
	}
	return nil
}
