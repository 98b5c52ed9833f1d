package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

const (
	// hashKey holds all pending entries, field = topic, value = JSON entry.
	hashKey = "pushqueue"
	// eventsChannel carries the topic name of every producer write.
	eventsChannel = "pushqueue.events"
)

// RedisQueue implements Producer and Consumer on a Redis hash plus a
// pub/sub channel as the change feed. Pub/sub is fire-and-forget, so the
// feed is best-effort; the hash entry is the durable part.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an existing client; the caller owns its lifecycle.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Put stages an entry under its topic and publishes the write event.
func (q *RedisQueue) Put(ctx context.Context, entry models.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode queue entry %s: %w", entry.Topic, err)
	}
	if err := q.client.HSet(ctx, hashKey, entry.Topic, data).Err(); err != nil {
		return fmt.Errorf("stage queue entry %s: %w", entry.Topic, err)
	}
	if err := q.client.Publish(ctx, eventsChannel, entry.Topic).Err(); err != nil {
		return fmt.Errorf("publish queue event %s: %w", entry.Topic, err)
	}
	return nil
}

// Get returns the pending entry for a topic, or ok=false if none.
func (q *RedisQueue) Get(ctx context.Context, topicName string) (models.QueueEntry, bool, error) {
	raw, err := q.client.HGet(ctx, hashKey, topicName).Result()
	if errors.Is(err, redis.Nil) {
		return models.QueueEntry{}, false, nil
	}
	if err != nil {
		return models.QueueEntry{}, false, fmt.Errorf("get queue entry %s: %w", topicName, err)
	}
	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return models.QueueEntry{}, false, fmt.Errorf("decode queue entry %s: %w", topicName, err)
	}
	return entry, true, nil
}

// Delete removes the pending entry for a topic if present.
func (q *RedisQueue) Delete(ctx context.Context, topicName string) error {
	if err := q.client.HDel(ctx, hashKey, topicName).Err(); err != nil {
		return fmt.Errorf("delete queue entry %s: %w", topicName, err)
	}
	return nil
}

// Watch subscribes to the write-event channel until ctx is cancelled.
func (q *RedisQueue) Watch(ctx context.Context) (<-chan string, error) {
	sub := q.client.Subscribe(ctx, eventsChannel)
	// Force the subscription to be established before returning so a
	// producer started afterwards cannot race the subscriber.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", eventsChannel, err)
	}

	out := make(chan string, 256)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
