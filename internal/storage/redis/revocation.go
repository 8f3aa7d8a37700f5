package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "accountdesk:session:revoked:"

// SessionRevocations 基于 Redis 的会话吊销列表
//
// 键在会话原本的过期时间到达后自动失效，多个服务实例共享同一份列表。
type SessionRevocations struct {
	client *Client
}

// NewSessionRevocations 创建会话吊销列表
func NewSessionRevocations(client *Client) *SessionRevocations {
	return &SessionRevocations{client: client}
}

// Revoke 吊销会话直到 until
func (r *SessionRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.rdb.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked 检查会话是否已被吊销
func (r *SessionRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := r.client.rdb.Get(ctx, revokedSessionPrefix+sessionID).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return true, nil
}
