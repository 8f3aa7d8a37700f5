package cache

import (
	"context"
	"time"
)

const revokedSessionPrefix = "session:revoked:"

// SessionRevocations 进程内会话吊销列表，未配置 Redis 时使用
type SessionRevocations struct {
	cache *LocalCache
}

// NewSessionRevocations 创建会话吊销列表
func NewSessionRevocations(cache *LocalCache) *SessionRevocations {
	return &SessionRevocations{cache: cache}
}

// Revoke 吊销会话直到 until
func (r *SessionRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	r.cache.Set(revokedSessionPrefix+sessionID, struct{}{}, ttl)
	return nil
}

// IsRevoked 检查会话是否已被吊销
func (r *SessionRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	_, ok := r.cache.Get(revokedSessionPrefix + sessionID)
	return ok, nil
}
