package listview

import (
	"sync"

	"accountdesk/backend/internal/domain"
)

// View 有状态的列表视图
//
// source 在 Load 时整体替换；修改关键字或标签会把页码重置为 1 并重新计算
// 过滤与排序结果；LoadMore 只增加页码，排序结果在翻页之间保持不变。
type View[R domain.Record[R]] struct {
	mu       sync.RWMutex
	source   []R
	query    string
	tag      string
	pageSize int
	page     int
	sorted   []Item[R]
}

// NewView 创建列表视图，pageSize <= 0 时使用 DefaultPageSize
func NewView[R domain.Record[R]](pageSize int) *View[R] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &View[R]{pageSize: pageSize, page: 1, sorted: []Item[R]{}}
}

// Load 替换数据源（每次变更后整体重新加载），保留当前关键字与标签
func (v *View[R]) Load(source []R) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.source = source
	v.page = 1
	v.recompute()
}

// SetQuery 修改搜索关键字
func (v *View[R]) SetQuery(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query = query
	v.page = 1
	v.recompute()
}

// SetTag 修改服务标签过滤，空字符串表示全部
func (v *View[R]) SetTag(tag string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = tag
	v.page = 1
	v.recompute()
}

// LoadMore 展开下一页，没有更多记录时不做任何事并返回 false
func (v *View[R]) LoadMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.page*v.pageSize >= len(v.sorted) {
		return false
	}
	v.page++
	return true
}

// Displayed 当前展示的记录
func (v *View[R]) Displayed() []Item[R] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Paginate(v.sorted, v.pageSize, v.page)
}

// HasMore 是否还有未展示的记录
func (v *View[R]) HasMore() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.page*v.pageSize < len(v.sorted)
}

// Page 当前页码
func (v *View[R]) Page() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.page
}

// Matched 过滤后的记录数
func (v *View[R]) Matched() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.sorted)
}

// Stats 基于完整数据源的标签统计
func (v *View[R]) Stats() []TagStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Stats(v.source)
}

// Tags 数据源中的全部服务标签
func (v *View[R]) Tags() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Tags(v.source)
}

func (v *View[R]) recompute() {
	v.sorted = SortByAvailability(Filter(v.source, v.query, v.tag))
}
