package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisStoreKey = "alerts:store"

// RedisStore persists the alert map as a single JSON document under one
// key. A SET fully replaces the previous document, which gives the same
// atomic-replace guarantee as the file store's rename.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// RedisStoreConfig holds Redis connection settings for the alert store
type RedisStoreConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// NewRedisStore connects to Redis and verifies connectivity
func NewRedisStore(cfg RedisStoreConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = redisStoreKey
	}

	return &RedisStore{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "RedisStore").Logger(),
	}, nil
}

// Load reads the alert document from Redis, applying the same migration
// defaults and malformed-record skipping as the file store
func (s *RedisStore) Load(ctx context.Context) (map[string]*Alert, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return make(map[string]*Alert), nil
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("corrupt store document: %w", err)}
	}

	alerts := make(map[string]*Alert, len(raw))
	dirty := false
	for id, msg := range raw {
		a, migrated, err := decodeStoredAlert(id, msg)
		if err != nil {
			s.logger.Warn().Str("alert_id", id).Err(err).Msg("Skipping malformed alert record")
			dirty = true
			continue
		}
		if migrated {
			dirty = true
		}
		alerts[a.ID] = a
	}

	if dirty {
		if err := s.Save(ctx, alerts); err != nil {
			return nil, err
		}
		s.logger.Info().Int("alerts", len(alerts)).Msg("Rewrote alert store after migration")
	}

	return alerts, nil
}

// Save replaces the alert document in Redis
func (s *RedisStore) Save(ctx context.Context, alerts map[string]*Alert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	return nil
}

// Close releases the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
