// Package listview 实现记录列表的 过滤 → 排序 → 分页 流水线。
//
// 流水线是纯函数：同一份数据源与参数总是得到相同结果，
// 服务端视图接口与有状态的 View 共用这一套实现。
package listview

import (
	"slices"
	"sort"
	"strings"

	"accountdesk/backend/internal/domain"
)

// DefaultPageSize 每页记录数
const DefaultPageSize = 12

// Params 列表视图参数
type Params struct {
	Query    string // 全文搜索关键字（大小写不敏感的子串匹配）
	Tag      string // 服务标签，空字符串表示不过滤
	PageSize int
	Page     int // 从 1 开始
}

// Normalize 补全默认值
func (p Params) Normalize() Params {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Item 视图中的一条记录，Index 为它在数据源中的下标（即更新与删除的地址）
type Item[R any] struct {
	Index  int `json:"index"`
	Record R   `json:"record"`
}

// TagStats 单个服务标签下的记录统计
type TagStats struct {
	Tag         string `json:"service"`
	Total       int    `json:"total"`
	Available   int    `json:"available"`
	Unavailable int    `json:"unavailable"`
}

// Result 一次流水线计算的结果
type Result[R any] struct {
	Items        []Item[R]  `json:"items"`
	Page         int        `json:"page"`
	PageSize     int        `json:"pageSize"`
	Matched      int        `json:"matched"`          // 过滤后的记录数
	MatchedAvail int        `json:"matchedAvailable"` // 过滤后可用的记录数
	HasMore      bool       `json:"hasMore"`
	Stats        []TagStats `json:"stats"` // 基于完整数据源
	Tags         []string   `json:"services"`
}

// Run 对数据源执行完整流水线
func Run[R domain.Record[R]](source []R, params Params) Result[R] {
	params = params.Normalize()

	sorted := SortByAvailability(Filter(source, params.Query, params.Tag))
	displayed := Paginate(sorted, params.PageSize, params.Page)

	return Result[R]{
		Items:        displayed,
		Page:         params.Page,
		PageSize:     params.PageSize,
		Matched:      len(sorted),
		MatchedAvail: countAvailable(sorted),
		HasMore:      len(displayed) < len(sorted),
		Stats:        Stats(source),
		Tags:         Tags(source),
	}
}

// Filter 按关键字与服务标签过滤
//
// 关键字对记录的任一字符串字段做大小写不敏感的子串匹配（字段间为或），
// 标签要求与记录的 Tag() 完全相等（与关键字为且）。
func Filter[R domain.Record[R]](source []R, query, tag string) []Item[R] {
	needle := strings.ToLower(query)

	items := make([]Item[R], 0, len(source))
	for i, rec := range source {
		if tag != "" && rec.Tag() != tag {
			continue
		}
		if needle != "" && !matches(rec.SearchFields(), needle) {
			continue
		}
		items = append(items, Item[R]{Index: i, Record: rec})
	}
	return items
}

// SortByAvailability 稳定排序：可用记录在前，组内保持原有顺序
func SortByAvailability[R domain.Record[R]](items []Item[R]) []Item[R] {
	sorted := make([]Item[R], len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Record.Available() && !sorted[j].Record.Available()
	})
	return sorted
}

// Paginate 返回前 pageSize*page 条记录（逐页展开）
//
// 结果容量被截断到长度，调用方追加元素不会覆盖 items 中未展示的部分。
func Paginate[T any](items []T, pageSize, page int) []T {
	if pageSize <= 0 || page < 1 {
		return slices.Clip(items[:0])
	}
	limit := min(pageSize*page, len(items))
	return slices.Clip(items[:limit])
}

// Stats 按服务标签统计可用与不可用记录数，按标签名排序
func Stats[R domain.Record[R]](source []R) []TagStats {
	index := make(map[string]int)
	stats := make([]TagStats, 0)
	for _, rec := range source {
		tag := rec.Tag()
		i, ok := index[tag]
		if !ok {
			i = len(stats)
			index[tag] = i
			stats = append(stats, TagStats{Tag: tag})
		}
		stats[i].Total++
		if rec.Available() {
			stats[i].Available++
		} else {
			stats[i].Unavailable++
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Tag < stats[j].Tag })
	return stats
}

// Tags 返回数据源中出现的全部服务标签（已排序、去重）
func Tags[R domain.Record[R]](source []R) []string {
	stats := Stats(source)
	tags := make([]string, len(stats))
	for i, s := range stats {
		tags[i] = s.Tag
	}
	return tags
}

func matches(fields []string, needle string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func countAvailable[R domain.Record[R]](items []Item[R]) int {
	n := 0
	for _, item := range items {
		if item.Record.Available() {
			n++
		}
	}
	return n
}
