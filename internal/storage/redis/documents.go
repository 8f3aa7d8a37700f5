package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const documentPrefix = "accountdesk:collection:"

// DocumentCache 在 Redis 中缓存集合的序列化内容
type DocumentCache struct {
	client *Client
}

// NewDocumentCache 创建集合内容缓存
func NewDocumentCache(client *Client) *DocumentCache {
	return &DocumentCache{client: client}
}

// Get 读取缓存，未命中时返回 false
func (c *DocumentCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.rdb.Get(ctx, documentPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached collection: %w", err)
	}
	return data, true, nil
}

// Set 写入缓存
func (c *DocumentCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.rdb.Set(ctx, documentPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache collection: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *DocumentCache) Delete(ctx context.Context, key string) error {
	if err := c.client.rdb.Del(ctx, documentPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached collection: %w", err)
	}
	return nil
}
