package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/editor"
	"accountdesk/backend/internal/listview"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/codec"
)

// Records 封装某一种记录形状在命名集合上的业务操作
//
// 所有写入路径都会先调用 Derived()，Availability 始终由 Warranty 推导。
type Records[R domain.Record[R]] struct {
	store    *storage.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewRecords 创建记录服务
func NewRecords[R domain.Record[R]](store *storage.Store, notifier Notifier, logger *zap.Logger) *Records[R] {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records[R]{store: store, notifier: notifier, logger: logger}
}

// List 读取集合中的全部记录（null 空位解析为零值记录）
func (s *Records[R]) List(ctx context.Context, collection string) ([]R, error) {
	docs, err := s.Documents(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]R, len(docs))
	for i, doc := range docs {
		if doc != nil {
			records[i] = *doc
		}
	}
	return records, nil
}

// Documents 读取集合中的全部记录，null 空位保留为 nil
func (s *Records[R]) Documents(ctx context.Context, collection string) ([]*R, error) {
	docs, err := s.store.ReadAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]*R, len(docs))
	for i, doc := range docs {
		if codec.IsNull(doc) {
			continue
		}
		var record R
		if err := json.Unmarshal(doc, &record); err != nil {
			return nil, fmt.Errorf("%w: collection %q record %d: %v", domain.ErrStorageRead, collection, i, err)
		}
		records[i] = &record
	}
	return records, nil
}

// Add 在集合末尾追加记录
func (s *Records[R]) Add(ctx context.Context, collection string, record R) error {
	doc, err := s.encode(record)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, collection, doc); err != nil {
		return err
	}

	s.notifier.Notify(newEvent(ChangeCollection, collection, OpAdd, nil))
	return nil
}

// AddTo 追加记录，集合不存在时先创建；返回是否新建了集合
func (s *Records[R]) AddTo(ctx context.Context, collection string, record R) (bool, error) {
	created := true
	if err := s.store.CreateCollection(ctx, collection); err != nil {
		if !errors.Is(err, domain.ErrCollectionExists) {
			return false, err
		}
		created = false
	}

	if created {
		s.logger.Info("collection bootstrapped", zap.String("collection", collection))
		s.notifier.Notify(newEvent(ChangeDirectory, collection, OpCreate, nil))
	}

	if err := s.Add(ctx, collection, record); err != nil {
		return created, err
	}
	return created, nil
}

// Update 整体替换指定下标的记录
func (s *Records[R]) Update(ctx context.Context, collection string, index int, record R) error {
	doc, err := s.encode(record)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceAt(ctx, collection, index, doc); err != nil {
		return err
	}

	s.notifier.Notify(newEvent(ChangeCollection, collection, OpUpdate, &index))
	return nil
}

// Delete 删除指定下标的记录
func (s *Records[R]) Delete(ctx context.Context, collection string, index int) error {
	if err := s.store.RemoveAt(ctx, collection, index); err != nil {
		return err
	}

	s.notifier.Notify(newEvent(ChangeCollection, collection, OpDelete, &index))
	return nil
}

// View 读取集合并执行列表视图流水线
func (s *Records[R]) View(ctx context.Context, collection string, params listview.Params) (listview.Result[R], error) {
	records, err := s.List(ctx, collection)
	if err != nil {
		return listview.Result[R]{}, err
	}
	return listview.Run(records, params), nil
}

// Edit 加载指定下标的记录并返回绑定到该下标的编辑器
func (s *Records[R]) Edit(ctx context.Context, collection string, index int) (*editor.Editor[R], error) {
	records, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(records) {
		return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}

	save := func(ctx context.Context, index int, record R) error {
		return s.Update(ctx, collection, index, record)
	}
	return editor.New(index, records[index], save), nil
}

// Patch 将部分字段合并到指定下标的记录上并保存
func (s *Records[R]) Patch(ctx context.Context, collection string, index int, fields map[string]json.RawMessage) (R, error) {
	var zero R

	ed, err := s.Edit(ctx, collection, index)
	if err != nil {
		return zero, err
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var mergeErr error
	ed.Edit(func(r *R) {
		mergeErr = json.Unmarshal(patch, r)
	})
	if mergeErr != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrValidation, mergeErr)
	}

	return ed.Submit(ctx)
}

func (s *Records[R]) encode(record R) (json.RawMessage, error) {
	doc, err := codec.Marshal(record.Derived())
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %v", domain.ErrStorageWrite, err)
	}
	return doc, nil
}
