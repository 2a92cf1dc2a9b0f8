package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"evalboard/internal/model"
)

// DefaultResultTTL is how long an extraction result stays cached.
const DefaultResultTTL = 48 * time.Hour

// ResultCache maps a file content hash to previously extracted rows.
// The cache is an optimization, never a source of truth: Get degrades to a
// miss and Set to a no-op when the backend misbehaves, so every pipeline
// path works with the backend degraded or absent.
type ResultCache interface {
	Get(ctx context.Context, fileHash string) ([]model.Row, bool)
	Set(ctx context.Context, fileHash string, rows []model.Row, ttl time.Duration)
}

type RedisResultCache struct {
	client *redisv9.Client
}

func NewRedisResultCache(client *redisv9.Client) *RedisResultCache {
	return &RedisResultCache{client: client}
}

func (c *RedisResultCache) Get(ctx context.Context, fileHash string) ([]model.Row, bool) {
	raw, err := c.client.Get(ctx, resultKey(fileHash)).Result()
	if err == redisv9.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("result cache: redis get failed, treating as miss: %v", err)
		return nil, false
	}

	var rows []model.Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		log.Printf("result cache: corrupt entry for %s, treating as miss: %v", fileHash, err)
		return nil, false
	}
	return rows, true
}

func (c *RedisResultCache) Set(ctx context.Context, fileHash string, rows []model.Row, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		log.Printf("result cache: marshal rows failed for %s: %v", fileHash, err)
		return
	}
	if err := c.client.Set(ctx, resultKey(fileHash), payload, ttl).Err(); err != nil {
		log.Printf("result cache: redis set failed for %s: %v", fileHash, err)
	}
}

func resultKey(fileHash string) string {
	return fmt.Sprintf("extract:result:%s", fileHash)
}
