package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/filesystem"
)

// MockNotifier 模拟变更通知
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(event ChangeEvent) {
	m.Called(event)
}

// MockBackend 模拟集合后端
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Read(ctx context.Context, name string) ([]json.RawMessage, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockBackend) Update(ctx context.Context, name string, fn storage.UpdateFunc) error {
	args := m.Called(ctx, name, fn)
	return args.Error(0)
}

func (m *MockBackend) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBackend) Create(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockBackend) Health() error {
	return m.Called().Error(0)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

// 测试辅助函数：基于临时目录的存储
func newFilesystemStore(t *testing.T) (*storage.Store, *filesystem.Store) {
	t.Helper()
	backend, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	return storage.NewStore(backend), backend
}

var errBackendDown = errors.New("backend down")

func matchEvent(kind ChangeType, collection, op string) interface{} {
	return mock.MatchedBy(func(e ChangeEvent) bool {
		return e.Type == kind && e.Collection == collection && e.Op == op
	})
}
