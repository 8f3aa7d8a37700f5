package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/codec"
)

const (
	defaultLockTimeout = 10 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
)

var _ storage.Backend = (*Store)(nil)

// Store 文件系统集合后端
//
// 每个集合对应数据目录下的一个 <name>.json 文件。同一集合的写操作
// 在进程内由互斥锁串行化，跨进程由同名 .lock 文件上的 flock 串行化；
// 新内容先写入临时文件再 rename，写入失败时原文件保持不变。
type Store struct {
	basePath      string         // 集合文件根目录
	platformUtils *PlatformUtils // 平台兼容性工具
	lockTimeout   time.Duration
	logger        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option 文件后端可选配置
type Option func(*Store)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLockTimeout 设置获取跨进程文件锁的最长等待时间
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

// NewStore 创建文件系统后端，数据目录不存在时自动创建
func NewStore(basePath string, opts ...Option) (*Store, error) {
	platformUtils := NewPlatformUtils()

	if err := platformUtils.ValidatePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid data directory: %w", err)
	}

	normalizedPath := platformUtils.NormalizePath(basePath)
	if err := os.MkdirAll(normalizedPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		basePath:      normalizedPath,
		platformUtils: platformUtils,
		lockTimeout:   defaultLockTimeout,
		logger:        zap.NewNop(),
		locks:         make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BasePath 返回数据目录
func (s *Store) BasePath() string {
	return s.basePath
}

// Read 读取集合文件并解析为文档数组
func (s *Store) Read(ctx context.Context, name string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.collectionPath(name)
	if err != nil {
		return nil, err
	}
	return s.readFile(path, name)
}

// Update 在集合锁内完成 读取 → 修改 → 写回
func (s *Store) Update(ctx context.Context, name string, fn storage.UpdateFunc) error {
	path, err := s.collectionPath(name)
	if err != nil {
		return err
	}

	unlock, err := s.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	docs, err := s.readFile(path, name)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	updated, err := fn(docs)
	if err != nil {
		return err
	}

	data, err := codec.Encode(updated)
	if err != nil {
		return err
	}
	return s.writeAtomic(path, data)
}

// List 列出数据目录中的集合名称（按名称排序）
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: list data directory: %v", domain.ErrStorageRead, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := s.platformUtils.CollectionName(entry.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create 创建空集合文件，文件已存在时返回 ErrCollectionExists
func (s *Store) Create(ctx context.Context, name string) error {
	path, err := s.collectionPath(name)
	if err != nil {
		return err
	}

	unlock, err := s.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.ErrCollectionExists
		}
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrStorageWrite, name, err)
	}

	if _, err := f.Write(codec.EmptyArray); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrStorageWrite, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrStorageWrite, name, err)
	}

	s.logger.Info("collection created", zap.String("collection", name))
	return nil
}

// Health 检查数据目录可访问
func (s *Store) Health() error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory is not a directory: %s", s.basePath)
	}
	return nil
}

// Close 文件后端无需释放资源
func (s *Store) Close() error {
	return nil
}

func (s *Store) collectionPath(name string) (string, error) {
	if err := domain.ValidateCollectionName(name); err != nil {
		return "", err
	}
	filename := s.platformUtils.CollectionFilename(name)
	if !s.platformUtils.IsValidFilename(filename) {
		return "", domain.ErrInvalidCollectionName
	}
	return filepath.Join(s.basePath, filename), nil
}

func (s *Store) readFile(path, name string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: collection %q not found", domain.ErrStorageRead, name)
		}
		return nil, fmt.Errorf("%w: read collection %q: %v", domain.ErrStorageRead, name, err)
	}

	docs, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", name, err)
	}
	return docs, nil
}

// writeAtomic 写入同目录临时文件后 rename 覆盖目标文件
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStorageWrite, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: write temp file: %v", domain.ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync temp file: %v", domain.ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", domain.ErrStorageWrite, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod temp file: %v", domain.ErrStorageWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace collection file: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// acquire 依次获取进程内互斥锁和跨进程文件锁，返回释放函数
func (s *Store) acquire(ctx context.Context, name string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := s.collectionMutex(name)
	mu.Lock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fileLock := flock.New(filepath.Join(s.basePath, "."+name+lockExt))
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = lockCtx.Err()
		}
		return nil, fmt.Errorf("%w: lock collection %q: %v", domain.ErrStorageWrite, name, err)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.Warn("failed to release collection lock",
				zap.String("collection", name),
				zap.Error(err),
			)
		}
		mu.Unlock()
	}, nil
}

func (s *Store) collectionMutex(name string) *sync.Mutex {
	key := name
	if !s.platformUtils.IsCaseSensitive() {
		key = strings.ToLower(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}
