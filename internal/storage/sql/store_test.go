package sql

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/backend/internal/domain"
)

// 需要真实数据库：设置 ACCOUNTDESK_TEST_SQL_DRIVER 与 ACCOUNTDESK_TEST_SQL_DSN 后运行
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	driver := os.Getenv("ACCOUNTDESK_TEST_SQL_DRIVER")
	dsn := os.Getenv("ACCOUNTDESK_TEST_SQL_DSN")
	if driver == "" || dsn == "" {
		t.Skip("ACCOUNTDESK_TEST_SQL_DRIVER / ACCOUNTDESK_TEST_SQL_DSN not set")
	}

	store, err := NewStore(driver, dsn, 5, 2, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStoreUnsupportedDriver(t *testing.T) {
	_, err := NewStore("sqlite", "file::memory:", 1, 1, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	name := "Test-" + uuid.NewString()[:8]

	t.Run("读取不存在的集合", func(t *testing.T) {
		_, err := store.Read(ctx, name)
		assert.ErrorIs(t, err, domain.ErrStorageRead)
	})

	t.Run("创建并追加", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, name))
		assert.ErrorIs(t, store.Create(ctx, name), domain.ErrCollectionExists)

		err := store.Update(ctx, name, func(docs []json.RawMessage) ([]json.RawMessage, error) {
			return append(docs, json.RawMessage(`{"Email":"a@x.com"}`)), nil
		})
		require.NoError(t, err)

		docs, err := store.Read(ctx, name)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.JSONEq(t, `{"Email":"a@x.com"}`, string(docs[0]))
	})

	t.Run("列表包含新集合", func(t *testing.T) {
		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, name)
	})

	assert.NoError(t, store.Health())
}
