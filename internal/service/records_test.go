package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/listview"
)

func TestRecordsEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, _ := newFilesystemStore(t)
	require.NoError(t, store.CreateCollection(ctx, "CloudflareTempEmail"))

	svc := NewRecords[domain.TempEmailRecord](store, nil, nil)

	// 追加时 Availability 由 Warranty 推导，忽略调用方传入的值
	require.NoError(t, svc.Add(ctx, "CloudflareTempEmail", domain.TempEmailRecord{
		Email:        "a@x.com",
		Warranty:     "",
		Availability: false,
	}))

	records, err := svc.List(ctx, "CloudflareTempEmail")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Availability)

	ed, err := svc.Edit(ctx, "CloudflareTempEmail", 0)
	require.NoError(t, err)
	ed.Edit(func(r *domain.TempEmailRecord) { r.Warranty = "C123" })
	_, err = ed.Submit(ctx)
	require.NoError(t, err)

	records, err = svc.List(ctx, "CloudflareTempEmail")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Availability)
	assert.Equal(t, "C123", records[0].Warranty)
}

func TestRecordsMutations(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, notifier Notifier) *Records[domain.ServiceAccountRecord] {
		store, _ := newFilesystemStore(t)
		require.NoError(t, store.CreateCollection(ctx, "ServiceAccounts"))
		svc := NewRecords[domain.ServiceAccountRecord](store, notifier, nil)
		for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
			require.NoError(t, svc.Add(ctx, "ServiceAccounts", domain.ServiceAccountRecord{Email: email}))
		}
		return svc
	}

	t.Run("Update 重新推导可用性", func(t *testing.T) {
		svc := setup(t, nil)
		err := svc.Update(ctx, "ServiceAccounts", 1, domain.ServiceAccountRecord{
			Email:        "z@x.com",
			Warranty:     "W1",
			Availability: true,
		})
		require.NoError(t, err)

		records, err := svc.List(ctx, "ServiceAccounts")
		require.NoError(t, err)
		assert.Equal(t, "z@x.com", records[1].Email)
		assert.False(t, records[1].Availability)
		assert.Equal(t, "a@x.com", records[0].Email)
		assert.Equal(t, "c@x.com", records[2].Email)
	})

	t.Run("Delete 后续下标前移", func(t *testing.T) {
		svc := setup(t, nil)
		require.NoError(t, svc.Delete(ctx, "ServiceAccounts", 0))

		records, err := svc.List(ctx, "ServiceAccounts")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "b@x.com", records[0].Email)
	})

	t.Run("Patch 只修改给定字段", func(t *testing.T) {
		svc := setup(t, nil)
		updated, err := svc.Patch(ctx, "ServiceAccounts", 2, map[string]json.RawMessage{
			"Warranty": json.RawMessage(`"C7"`),
			"Service":  json.RawMessage(`"Netflix"`),
		})
		require.NoError(t, err)
		assert.Equal(t, "c@x.com", updated.Email)
		assert.Equal(t, "Netflix", updated.Service)
		assert.False(t, updated.Availability)

		records, err := svc.List(ctx, "ServiceAccounts")
		require.NoError(t, err)
		assert.Equal(t, updated, records[2])
	})

	t.Run("Patch 越界下标", func(t *testing.T) {
		svc := setup(t, nil)
		_, err := svc.Patch(ctx, "ServiceAccounts", 9, map[string]json.RawMessage{})
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	})

	t.Run("Patch 字段类型错误", func(t *testing.T) {
		svc := setup(t, nil)
		_, err := svc.Patch(ctx, "ServiceAccounts", 0, map[string]json.RawMessage{
			"Email": json.RawMessage(`123`),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("变更发出通知", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("Notify", matchEvent(ChangeCollection, "ServiceAccounts", OpAdd)).Times(3)
		notifier.On("Notify", matchEvent(ChangeCollection, "ServiceAccounts", OpDelete)).Once()

		svc := setup(t, notifier)
		require.NoError(t, svc.Delete(ctx, "ServiceAccounts", 0))
		notifier.AssertExpectations(t)
	})

	t.Run("集合不存在时追加失败", func(t *testing.T) {
		svc := setup(t, nil)
		err := svc.Add(ctx, "Missing", domain.ServiceAccountRecord{Email: "a@x.com"})
		assert.ErrorIs(t, err, domain.ErrStorageWrite)
	})
}

func TestRecordsAddTo(t *testing.T) {
	ctx := context.Background()
	store, _ := newFilesystemStore(t)

	notifier := new(MockNotifier)
	notifier.On("Notify", matchEvent(ChangeDirectory, "Netflix", OpCreate)).Once()
	notifier.On("Notify", matchEvent(ChangeCollection, "Netflix", OpAdd)).Twice()

	svc := NewRecords[domain.ServiceAccountRecord](store, notifier, nil)

	created, err := svc.AddTo(ctx, "Netflix", domain.ServiceAccountRecord{Email: "a@x.com", Service: "Netflix"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.AddTo(ctx, "Netflix", domain.ServiceAccountRecord{Email: "b@x.com", Service: "Netflix"})
	require.NoError(t, err)
	assert.False(t, created)

	records, err := svc.List(ctx, "Netflix")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	notifier.AssertExpectations(t)

	_, err = svc.AddTo(ctx, "../escape", domain.ServiceAccountRecord{})
	assert.ErrorIs(t, err, domain.ErrInvalidCollectionName)
	notifier.AssertNotCalled(t, "Notify", mock.MatchedBy(func(e ChangeEvent) bool {
		return e.Collection == "../escape"
	}))
}

func TestRecordsView(t *testing.T) {
	ctx := context.Background()
	store, _ := newFilesystemStore(t)
	require.NoError(t, store.CreateCollection(ctx, "ServiceAccounts"))
	svc := NewRecords[domain.ServiceAccountRecord](store, nil, nil)

	input := []domain.ServiceAccountRecord{
		{Email: "A", Warranty: "x"},
		{Email: "B"},
		{Email: "C", Warranty: "x"},
		{Email: "D", Service: "Netflix"},
	}
	for _, r := range input {
		require.NoError(t, svc.Add(ctx, "ServiceAccounts", r))
	}

	result, err := svc.View(ctx, "ServiceAccounts", listview.Params{})
	require.NoError(t, err)
	require.Len(t, result.Items, 4)
	assert.Equal(t, "B", result.Items[0].Record.Email)
	assert.Equal(t, "D", result.Items[1].Record.Email)
	assert.Equal(t, 3, result.Items[1].Index)
	assert.Equal(t, "A", result.Items[2].Record.Email)

	result, err = svc.View(ctx, "ServiceAccounts", listview.Params{Query: "netflix"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "D", result.Items[0].Record.Email)

	_, err = svc.View(ctx, "Missing", listview.Params{})
	assert.ErrorIs(t, err, domain.ErrStorageRead)
}

func TestRecordsListHoles(t *testing.T) {
	ctx := context.Background()
	store, _ := newFilesystemStore(t)
	require.NoError(t, store.CreateCollection(ctx, "ServiceAccounts"))
	svc := NewRecords[domain.ServiceAccountRecord](store, nil, nil)

	require.NoError(t, svc.Update(ctx, "ServiceAccounts", 2, domain.ServiceAccountRecord{Email: "c@x.com"}))

	records, err := svc.List(ctx, "ServiceAccounts")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.ServiceAccountRecord{}, records[0])
	assert.Equal(t, "c@x.com", records[2].Email)

	docs, err := svc.Documents(ctx, "ServiceAccounts")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Nil(t, docs[0])
	assert.Nil(t, docs[1])
	require.NotNil(t, docs[2])
	assert.Equal(t, "c@x.com", docs[2].Email)
}
