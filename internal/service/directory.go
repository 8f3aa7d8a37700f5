package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/storage"
)

// DirectoryConfig 目录中有特殊处理的两个集合名称
type DirectoryConfig struct {
	ServiceAccounts string // 始终出现在列表首位
	TempEmails      string // 通过独立接口访问，不出现在列表中
}

// Directory 集合目录服务
type Directory struct {
	store    *storage.Store
	cfg      DirectoryConfig
	notifier Notifier
	logger   *zap.Logger
}

// NewDirectory 创建集合目录服务
func NewDirectory(store *storage.Store, cfg DirectoryConfig, notifier Notifier, logger *zap.Logger) *Directory {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: store, cfg: cfg, notifier: notifier, logger: logger}
}

// List 返回集合名称：服务账号集合固定在首位，其余去重排序，不包含临时邮箱集合
//
// 名称不符合集合命名规则的文件无法被读写，不会出现在列表中。
// 读取后端失败时降级为只返回服务账号集合。
func (d *Directory) List(ctx context.Context) []string {
	names := []string{d.cfg.ServiceAccounts}

	found, err := d.store.Collections(ctx)
	if err != nil {
		d.logger.Error("failed to list collections", zap.Error(err))
		return names
	}

	seen := map[string]struct{}{d.cfg.ServiceAccounts: {}}
	rest := make([]string, 0, len(found))
	for _, name := range found {
		if name == d.cfg.TempEmails {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if err := domain.ValidateCollectionName(name); err != nil {
			d.logger.Warn("skipping collection with unsupported name",
				zap.String("collection", name),
				zap.Error(err),
			)
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)

	return append(names, rest...)
}

// Create 新建空集合
//
// 名称为空、不合法或已存在时返回 ErrValidation 族错误，已有集合的内容不会被修改。
func (d *Directory) Create(ctx context.Context, name string) error {
	if err := d.store.CreateCollection(ctx, name); err != nil {
		return err
	}

	d.logger.Info("collection created", zap.String("collection", name))
	d.notifier.Notify(newEvent(ChangeDirectory, name, OpCreate, nil))
	return nil
}

// Ensure 确保给定集合存在，已存在的集合保持不变
func (d *Directory) Ensure(ctx context.Context, names ...string) error {
	for _, name := range names {
		err := d.store.CreateCollection(ctx, name)
		if err == nil {
			d.logger.Info("collection initialized", zap.String("collection", name))
			continue
		}
		if !errors.Is(err, domain.ErrCollectionExists) {
			return err
		}
	}
	return nil
}
