package rag

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"hamrag/pkg/config"
)

const embeddingKeyPrefix = "hamrag:embedding:"

// RedisEmbeddingCache caches embedding vectors in Redis with a TTL.
// Failures are logged and swallowed; the cache is an optimization, not a
// dependency.
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisEmbeddingCache connects to Redis and verifies the connection.
func NewRedisEmbeddingCache(cfg *config.Config) (*RedisEmbeddingCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisEmbeddingCache{
		client: rdb,
		ttl:    cfg.EmbeddingCacheTTL,
		logger: slog.Default().With("component", "embedding-cache"),
	}
	cache.logger.Info("embedding cache initialized", "address", cfg.RedisAddr, "ttl", cache.ttl)
	return cache, nil
}

func (rc *RedisEmbeddingCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	data, err := rc.client.Get(ctx, rc.key(text, model)).Result()
	if err != nil {
		if err != redis.Nil {
			rc.logger.Error("failed to get embedding from cache", "error", err)
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal([]byte(data), &vector); err != nil {
		rc.logger.Error("failed to unmarshal cached embedding", "error", err)
		return nil, false
	}
	return vector, true
}

func (rc *RedisEmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		rc.logger.Error("failed to marshal embedding for cache", "error", err)
		return
	}
	if err := rc.client.Set(ctx, rc.key(text, model), data, rc.ttl).Err(); err != nil {
		rc.logger.Error("failed to store embedding in cache", "error", err)
	}
}

// Close releases the Redis connection pool.
func (rc *RedisEmbeddingCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisEmbeddingCache) key(text, model string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%s%x", embeddingKeyPrefix, sum)
}
