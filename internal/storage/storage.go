package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"accountdesk/backend/internal/domain"
)

// UpdateFunc 在独占状态下修改集合全部文档，返回新的文档数组
type UpdateFunc func(docs []json.RawMessage) ([]json.RawMessage, error)

// Backend 定义集合后端的最小存取能力。
//
// 集合是按名称寻址的有序 JSON 数组，位置下标就是记录的唯一地址。
// Update 必须对同一集合串行执行（读取 → 修改 → 整体写回），
// fn 返回错误时不得写入任何内容。
type Backend interface {
	Read(ctx context.Context, name string) ([]json.RawMessage, error)
	Update(ctx context.Context, name string, fn UpdateFunc) error
	List(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name string) error
	Health() error
	Close() error
}

// Store 在任意后端之上实现集合的四个基本操作
type Store struct {
	backend Backend
}

// NewStore 创建集合存储
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Backend 返回底层后端
func (s *Store) Backend() Backend {
	return s.backend
}

// ReadAll 读取集合中的全部文档
func (s *Store) ReadAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	return s.backend.Read(ctx, collection)
}

// Append 将文档追加到集合末尾
func (s *Store) Append(ctx context.Context, collection string, doc json.RawMessage) error {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return err
	}
	return s.backend.Update(ctx, collection, func(docs []json.RawMessage) ([]json.RawMessage, error) {
		return append(docs, doc), nil
	})
}

// ReplaceAt 替换指定下标的文档
//
// 下标超出末尾时数组会被扩展，中间的空位写为 null；负数下标被拒绝。
func (s *Store) ReplaceAt(ctx context.Context, collection string, index int, doc json.RawMessage) error {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}
	return s.backend.Update(ctx, collection, func(docs []json.RawMessage) ([]json.RawMessage, error) {
		for len(docs) <= index {
			docs = append(docs, json.RawMessage("null"))
		}
		docs[index] = doc
		return docs, nil
	})
}

// RemoveAt 删除指定下标的文档，后续文档下标依次减一
//
// 下标越界时不做任何修改，但集合仍会被整体写回。
func (s *Store) RemoveAt(ctx context.Context, collection string, index int) error {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return err
	}
	return s.backend.Update(ctx, collection, func(docs []json.RawMessage) ([]json.RawMessage, error) {
		if index < 0 || index >= len(docs) {
			return docs, nil
		}
		return append(docs[:index], docs[index+1:]...), nil
	})
}

// Collections 列出后端中的全部集合名称
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx)
}

// CreateCollection 创建空集合，名称已存在时返回 ErrCollectionExists
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	if err := domain.ValidateCollectionName(name); err != nil {
		return err
	}
	return s.backend.Create(ctx, name)
}

// Health 检查后端状态
func (s *Store) Health() error {
	return s.backend.Health()
}

// Close 释放后端资源
func (s *Store) Close() error {
	return s.backend.Close()
}
