// Package editor 提供绑定单条记录的编辑器。
package editor

import (
	"context"
	"sync"

	"accountdesk/backend/internal/domain"
)

// SaveFunc 保存回调，参数为记录的原始下标与提交后的记录
type SaveFunc[R any] func(ctx context.Context, index int, record R) error

// Editor 持有一条记录的工作副本及其原始下标
//
// Submit 总是先按 Warranty 重新推导 Availability，再调用保存回调。
type Editor[R domain.Record[R]] struct {
	mu       sync.Mutex
	index    int
	original R
	working  R
	save     SaveFunc[R]
}

// New 创建编辑器
func New[R domain.Record[R]](index int, record R, save SaveFunc[R]) *Editor[R] {
	return &Editor[R]{
		index:    index,
		original: record,
		working:  record,
		save:     save,
	}
}

// Index 记录的原始下标
func (e *Editor[R]) Index() int {
	return e.index
}

// Edit 修改工作副本
func (e *Editor[R]) Edit(fn func(*R)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.working)
}

// Working 返回工作副本
func (e *Editor[R]) Working() R {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working
}

// Reset 丢弃未提交的修改
func (e *Editor[R]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = e.original
}

// Submit 推导可用性并保存，成功后工作副本成为新的原始记录
func (e *Editor[R]) Submit(ctx context.Context) (R, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.working.Derived()
	if err := e.save(ctx, e.index, record); err != nil {
		var zero R
		return zero, err
	}

	e.original = record
	e.working = record
	return record, nil
}
