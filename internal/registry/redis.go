package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// RedisStore implements LocationRegistry, CursorStore and ProfileStore on
// Redis. Each location record is a JSON string keyed by
// locations:{offset}:{topic}; a per-partition sorted set
// locations:{offset}:index (all scores zero) provides ascending
// lexicographic paging and counts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore and verifies connectivity.
func NewRedisStore(ctx context.Context, addr, username, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Client exposes the underlying connection so the notification queue can
// share it instead of opening a second one.
func (s *RedisStore) Client() *redis.Client { return s.client }

// Ping checks store reachability, for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func indexKey(offset int) string { return fmt.Sprintf("locations:%d:index", offset) }

func recordKey(offset int, topicName string) string {
	return fmt.Sprintf("locations:%d:%s", offset, topicName)
}

func cursorKey(offset int) string { return fmt.Sprintf("cursor:weather:%d", offset) }

func profileKey(id string) string { return "profiles:" + id }

// Count returns the number of locations in the partition.
func (s *RedisStore) Count(ctx context.Context, offset int) (int, error) {
	n, err := s.client.ZCard(ctx, indexKey(offset)).Result()
	if err != nil {
		return 0, fmt.Errorf("count partition %d: %w", offset, err)
	}
	return int(n), nil
}

// Page returns up to limit locations in ascending topic order starting at
// (and including) startKey.
func (s *RedisStore) Page(ctx context.Context, offset int, startKey string, limit int) ([]models.Location, error) {
	min := "-"
	if startKey != "" {
		min = "[" + startKey
	}
	topics, err := s.client.ZRangeByLex(ctx, indexKey(offset), &redis.ZRangeBy{
		Min:   min,
		Max:   "+",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("page partition %d: %w", offset, err)
	}
	return s.fetchRecords(ctx, offset, topics)
}

// All returns every location in the partition in ascending topic order.
func (s *RedisStore) All(ctx context.Context, offset int) ([]models.Location, error) {
	topics, err := s.client.ZRangeByLex(ctx, indexKey(offset), &redis.ZRangeBy{
		Min: "-",
		Max: "+",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan partition %d: %w", offset, err)
	}
	return s.fetchRecords(ctx, offset, topics)
}

// fetchRecords loads and decodes the records for the given topics. Index
// entries whose record key has vanished are skipped.
func (s *RedisStore) fetchRecords(ctx context.Context, offset int, topics []string) ([]models.Location, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	keys := make([]string, len(topics))
	for i, t := range topics {
		keys[i] = recordKey(offset, t)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %d records in partition %d: %w", len(keys), offset, err)
	}

	out := make([]models.Location, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var loc models.Location
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", topics[i], err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// Get returns the record for a topic, or ok=false if none exists.
func (s *RedisStore) Get(ctx context.Context, offset int, topicName string) (models.Location, bool, error) {
	raw, err := s.client.Get(ctx, recordKey(offset, topicName)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Location{}, false, nil
	}
	if err != nil {
		return models.Location{}, false, fmt.Errorf("get record %s: %w", topicName, err)
	}
	var loc models.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return models.Location{}, false, fmt.Errorf("decode record %s: %w", topicName, err)
	}
	return loc, true, nil
}

// Create writes a new record unless one already exists for the topic.
func (s *RedisStore) Create(ctx context.Context, offset int, loc models.Location) (bool, error) {
	data, err := json.Marshal(loc)
	if err != nil {
		return false, fmt.Errorf("encode record %s: %w", loc.Topic, err)
	}
	created, err := s.client.SetNX(ctx, recordKey(offset, loc.Topic), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create record %s: %w", loc.Topic, err)
	}
	if !created {
		return false, nil
	}
	if err := s.client.ZAdd(ctx, indexKey(offset), redis.Z{Member: loc.Topic}).Err(); err != nil {
		return false, fmt.Errorf("index record %s: %w", loc.Topic, err)
	}
	return true, nil
}

// ApplyRefresh merges a provider refresh into an existing record.
func (s *RedisStore) ApplyRefresh(ctx context.Context, offset int, topicName string, refresh models.ForecastRefresh) error {
	loc, ok, err := s.Get(ctx, offset, topicName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("apply refresh for %s in partition %d: %w", topicName, offset, ErrNotFound)
	}
	mergeRefresh(&loc, refresh)
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", topicName, err)
	}
	if err := s.client.Set(ctx, recordKey(offset, topicName), data, 0).Err(); err != nil {
		return fmt.Errorf("write record %s: %w", topicName, err)
	}
	return nil
}

// GetCursor returns the partition's cursor, or ok=false when absent.
func (s *RedisStore) GetCursor(ctx context.Context, offset int) (models.Cursor, bool, error) {
	raw, err := s.client.Get(ctx, cursorKey(offset)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Cursor{}, false, nil
	}
	if err != nil {
		return models.Cursor{}, false, fmt.Errorf("get cursor for partition %d: %w", offset, err)
	}
	var cur models.Cursor
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		return models.Cursor{}, false, fmt.Errorf("decode cursor for partition %d: %w", offset, err)
	}
	return cur, true, nil
}

// PutCursor persists the partition's cursor.
func (s *RedisStore) PutCursor(ctx context.Context, offset int, cur models.Cursor) error {
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode cursor for partition %d: %w", offset, err)
	}
	if err := s.client.Set(ctx, cursorKey(offset), data, 0).Err(); err != nil {
		return fmt.Errorf("write cursor for partition %d: %w", offset, err)
	}
	return nil
}

// DeleteCursor removes the partition's cursor.
func (s *RedisStore) DeleteCursor(ctx context.Context, offset int) error {
	if err := s.client.Del(ctx, cursorKey(offset)).Err(); err != nil {
		return fmt.Errorf("delete cursor for partition %d: %w", offset, err)
	}
	return nil
}

// Save stores a profile keyed by its id.
func (s *RedisStore) Save(ctx context.Context, p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.ID, err)
	}
	if err := s.client.Set(ctx, profileKey(p.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("write profile %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile returns the profile for an id, or ok=false if none exists.
func (s *RedisStore) GetProfile(ctx context.Context, id string) (models.Profile, bool, error) {
	raw, err := s.client.Get(ctx, profileKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Profile{}, false, nil
	}
	if err != nil {
		return models.Profile{}, false, fmt.Errorf("get profile %s: %w", id, err)
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.Profile{}, false, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return p, true, nil
}

// Cursors adapts the store to the CursorStore interface.
func (s *RedisStore) Cursors() CursorStore { return redisCursors{s} }

// Profiles adapts the store to the ProfileStore interface.
func (s *RedisStore) Profiles() ProfileStore { return redisProfiles{s} }

type redisCursors struct{ s *RedisStore }

func (c redisCursors) Get(ctx context.Context, offset int) (models.Cursor, bool, error) {
	return c.s.GetCursor(ctx, offset)
}
func (c redisCursors) Put(ctx context.Context, offset int, cur models.Cursor) error {
	return c.s.PutCursor(ctx, offset, cur)
}
func (c redisCursors) Delete(ctx context.Context, offset int) error {
	return c.s.DeleteCursor(ctx, offset)
}

type redisProfiles struct{ s *RedisStore }

func (p redisProfiles) Save(ctx context.Context, prof models.Profile) error {
	return p.s.Save(ctx, prof)
}
func (p redisProfiles) Get(ctx context.Context, id string) (models.Profile, bool, error) {
	return p.s.GetProfile(ctx, id)
}
