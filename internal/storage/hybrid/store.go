package hybrid

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/codec"
)

// DocumentCache 集合内容缓存（Redis）
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var _ storage.Backend = (*Store)(nil)

// Store 混合存储实现，数据库为准，Redis 缓存整份集合内容
//
// 写操作在数据库提交后删除缓存；缓存不可用时直接读写数据库。
// 每个集合维护一个写入代数，读取期间发生过写入时不回填缓存。
type Store struct {
	backend storage.Backend
	cache   DocumentCache
	ttl     time.Duration
	log     *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewStore 创建混合存储实例
func NewStore(backend storage.Backend, cache DocumentCache, ttl time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		backend:     backend,
		cache:       cache,
		ttl:         ttl,
		log:         log,
		generations: make(map[string]uint64),
	}
}

// Read 先尝试从缓存获取，未命中时读取数据库并回填
func (s *Store) Read(ctx context.Context, name string) ([]json.RawMessage, error) {
	if data, ok, err := s.cache.Get(ctx, name); err != nil {
		s.log.Warn("collection cache unavailable", zap.String("collection", name), zap.Error(err))
	} else if ok {
		if docs, err := codec.Decode(data); err == nil {
			return docs, nil
		}
		s.invalidate(ctx, name)
	}

	gen := s.generation(name)
	docs, err := s.backend.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	s.backfill(ctx, name, gen, docs)
	return docs, nil
}

// Update 写入数据库后使缓存失效
func (s *Store) Update(ctx context.Context, name string, fn storage.UpdateFunc) error {
	defer s.written(ctx, name)
	return s.backend.Update(ctx, name, fn)
}

// List 集合名称直接从数据库读取
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx)
}

// Create 创建集合后使缓存失效
func (s *Store) Create(ctx context.Context, name string) error {
	defer s.written(ctx, name)
	return s.backend.Create(ctx, name)
}

// Health 检查数据库状态
func (s *Store) Health() error {
	return s.backend.Health()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) generation(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[name]
}

// backfill 回填缓存；读取开始后集合被写过则放弃，避免旧内容覆盖失效结果
func (s *Store) backfill(ctx context.Context, name string, gen uint64, docs []json.RawMessage) {
	data, err := codec.Encode(docs)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[name] != gen {
		return
	}
	if err := s.cache.Set(ctx, name, data, s.ttl); err != nil {
		s.log.Warn("failed to cache collection", zap.String("collection", name), zap.Error(err))
	}
}

// written 推进写入代数后删除缓存
func (s *Store) written(ctx context.Context, name string) {
	s.mu.Lock()
	s.generations[name]++
	s.mu.Unlock()
	s.invalidate(ctx, name)
}

func (s *Store) invalidate(ctx context.Context, name string) {
	// 请求已取消时仍需删除缓存
	ctx = context.WithoutCancel(ctx)
	if err := s.cache.Delete(ctx, name); err != nil {
		s.log.Warn("failed to invalidate collection cache", zap.String("collection", name), zap.Error(err))
	}
}
