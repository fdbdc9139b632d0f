package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// eventStream is the single stream carrying committed chat events.
const eventStream = "stream:chat-events"

type RedisEventBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisEventBus(rdb *redis.Client, log *slog.Logger) *RedisEventBus {
	return &RedisEventBus{rdb: rdb, log: log}
}

func (q *RedisEventBus) Publish(ctx context.Context, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisEventBus) Subscribe(
	ctx context.Context,
	group string,
	handler func(ctx context.Context, eventID string, data []byte) error,
) error {
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, eventStream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// Read new messages (">")
				res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    group,
					Consumer: consumerName,
					Streams:  []string{eventStream, ">"},
					Count:    1,
					Block:    2 * time.Second,
				}).Result()
				if err != nil {
					if err != redis.Nil && ctx.Err() == nil {
						q.log.Error("event bus - stream read - failed", "error", err)
					}
					continue
				}
				for _, stream := range res {
					for _, msg := range stream.Messages {
						raw, ok := msg.Values["data"].(string)
						if !ok {
							continue
						}
						if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
							q.log.Error("event bus - handler - failed",
								"event_id", msg.ID, "error", err)
						}
					}
				}
			}
		}
	}()
	return nil
}

func (q *RedisEventBus) Acknowledge(ctx context.Context, group, eventID string) error {
	return q.rdb.XAck(ctx, eventStream, group, eventID).Err()
}

func (q *RedisEventBus) Delete(ctx context.Context, eventID string) error {
	return q.rdb.XDel(ctx, eventStream, eventID).Err()
}

// Broadcast publishes on the per-user live channel. Anything holding a
// subscription for that user (a future push transport, an admin console
// tail) gets the payload; nobody listening is fine.
func (q *RedisEventBus) Broadcast(ctx context.Context, userID string, data []byte) error {
	return q.rdb.Publish(ctx, "chat:user:"+userID, data).Err()
}
