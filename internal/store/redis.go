package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skypro1111/silencesense/internal/config"
	"github.com/skypro1111/silencesense/internal/report"
)

const defaultPrefix = "silencesense:"

// RedisStore keeps analyses as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects to redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &RedisStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *RedisStore) analysisKey(id string) string {
	return s.prefix + "analysis:" + id
}

func (s *RedisStore) indexKey(key string) string {
	return s.prefix + "key:" + key
}

// Save writes the analysis and its cache-key index in one transaction.
func (s *RedisStore) Save(ctx context.Context, a *report.Analysis) error {
	if err := validate(a); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis %s: %w", a.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.analysisKey(a.ID), data, s.ttl)
		pipe.Set(ctx, s.indexKey(a.CacheKey()), a.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the analysis with the given id.
func (s *RedisStore) Get(ctx context.Context, id string) (*report.Analysis, error) {
	raw, err := s.client.Get(ctx, s.analysisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis %s: %w", id, err)
	}

	var a report.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis %s: %w", id, err)
	}
	return &a, nil
}

// FindByKey resolves the cache-key index and loads the analysis.
func (s *RedisStore) FindByKey(ctx context.Context, key string) (*report.Analysis, error) {
	id, err := s.client.Get(ctx, s.indexKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve cache key: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var cursor uint64
	keys := make([]string, 0)
	pattern := s.analysisKey("*")
	for {
		res, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan analyses: %w", err)
		}
		keys = append(keys, res...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// List returns stored analyses, newest first. Entries expiring during the
// scan are skipped.
func (s *RedisStore) List(ctx context.Context) ([]*report.Analysis, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*report.Analysis{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	items := make([]*report.Analysis, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a report.Analysis
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
		items = append(items, &a)
	}

	newestFirst(items)
	return items, nil
}

// Stats counts stored analyses.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:    BackendRedis,
		Count:      len(keys),
		TTLSeconds: ttlSeconds(s.ttl),
	}, nil
}

// Close closes the redis client.
func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}
