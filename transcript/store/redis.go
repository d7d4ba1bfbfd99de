package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/ai-devteam/transcript"
)

// RedisStore keeps each record as a JSON value and a per-session list of
// record ids.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings for the archive.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "devteam:transcript:",
			TTL:    7 * 24 * time.Hour,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, prefix: config.Prefix, ttl: config.TTL}, nil
}

// Save writes the record and appends its id to the session index once.
func (s *RedisStore) Save(ctx context.Context, record *transcript.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	key := s.recordKey(record.ID)
	existed, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check transcript: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, s.ttl)
	if existed == 0 {
		pipe.RPush(ctx, s.indexKey(record.SessionID), record.ID)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(record.SessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// List loads every record still present for the session. Expired records
// are skipped.
func (s *RedisStore) List(ctx context.Context, sessionID string) ([]*transcript.Record, error) {
	ids, err := s.client.LRange(ctx, s.indexKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load transcripts: %w", err)
	}

	records := make([]*transcript.Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var record transcript.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to decode transcript: %w", err)
		}
		records = append(records, &record)
	}
	transcript.SortByStart(records)
	return records, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + "record:" + id
}

func (s *RedisStore) indexKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}
