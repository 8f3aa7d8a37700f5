package service

import (
	"time"

	"go.uber.org/zap"

	"accountdesk/backend/internal/pool"
)

// ChangeType 变更事件类型
type ChangeType string

const (
	// ChangeCollection 集合中的记录发生变化
	ChangeCollection ChangeType = "collection_changed"
	// ChangeDirectory 集合目录发生变化（新建了集合）
	ChangeDirectory ChangeType = "directory_changed"
)

// 记录操作
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpCreate = "create"
)

// ChangeEvent 变更事件，客户端收到后整体重新加载对应集合
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	Collection string     `json:"collection"`
	Op         string     `json:"op"`
	Index      *int       `json:"index,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier 变更事件接收方
type Notifier interface {
	Notify(event ChangeEvent)
}

// NotifierFunc 函数形式的 Notifier
type NotifierFunc func(event ChangeEvent)

// Notify 实现 Notifier 接口
func (f NotifierFunc) Notify(event ChangeEvent) {
	f(event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(ChangeEvent) {}

// AsyncNotifier 通过协程池把事件异步分发给多个接收方
//
// 队列已满时丢弃事件并记录警告，不阻塞写请求。
type AsyncNotifier struct {
	pool   *pool.WorkerPool
	sinks  []Notifier
	logger *zap.Logger
}

// NewAsyncNotifier 创建异步通知器
func NewAsyncNotifier(workers *pool.WorkerPool, logger *zap.Logger, sinks ...Notifier) *AsyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncNotifier{pool: workers, sinks: sinks, logger: logger}
}

// Notify 实现 Notifier 接口
func (n *AsyncNotifier) Notify(event ChangeEvent) {
	for _, sink := range n.sinks {
		sink := sink
		if !n.pool.TrySubmit(func() { sink.Notify(event) }) {
			n.logger.Warn("change notification dropped",
				zap.String("type", string(event.Type)),
				zap.String("collection", event.Collection),
			)
		}
	}
}

func newEvent(kind ChangeType, collection, op string, index *int) ChangeEvent {
	return ChangeEvent{
		Type:       kind,
		Collection: collection,
		Op:         op,
		Index:      index,
		At:         time.Now().UTC(),
	}
}
