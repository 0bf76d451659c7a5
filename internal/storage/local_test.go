package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/kv"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/deliveries/internal/storage/mocks"
)

var fixedTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.json")
	s := NewLocalStorage(kv.NewFileStore(path), zap.NewNop())
	s.timeNow = func() time.Time { return fixedTime }
	return s, path
}

func sampleInput() orders.Input {
	return orders.Input{
		CustomerName:  "Ivan Petrov",
		Company:       "Acme Logistics",
		ContainerSize: "40ft New",
		Quantity:      5,
		DeliveryDate:  time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestLocalStorage_Insert(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocal(t)

	first, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "1741608000000", first.ID)
	assert.Equal(t, orders.StatusPending, first.Status)
	assert.Nil(t, first.CreatedAt)

	// same millisecond: id is bumped instead of colliding
	second, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "1741608000001", second.ID)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{first, second}, all)
}

func TestLocalStorage_StoredFormat(t *testing.T) {
	ctx := context.Background()
	s, path := newLocal(t)

	_, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orders": [{
		"id": "1741608000000",
		"customerName": "Ivan Petrov",
		"company": "Acme Logistics",
		"containerSize": "40ft New",
		"quantity": 5,
		"deliveryDate": "2025-03-10T09:30:00Z",
		"status": "pending"
	}]}`, string(raw))
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := newLocal(t)

	inserted, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)

	reopened := NewLocalStorage(kv.NewFileStore(path), zap.NewNop())
	got, err := reopened.Get(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted, got)
}

func TestLocalStorage_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocal(t)

	order, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)

	t.Run("full overwrite", func(t *testing.T) {
		order.Company = "Globex"
		order.Quantity = 9
		order.Status = orders.StatusCompleted

		updated, err := s.Update(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, order, updated)

		got, err := s.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "Globex", got.Company)
		assert.Equal(t, orders.StatusCompleted, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		missing := order
		missing.ID = "nope"
		_, err := s.Update(ctx, missing)
		assert.ErrorIs(t, err, orders.ErrNotFound)
	})
}

func TestLocalStorage_Remove(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocal(t)

	a, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)
	b, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, a.ID))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{b}, all)

	t.Run("absent id is a no-op", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "does-not-exist"))
		require.NoError(t, s.Remove(ctx, a.ID))

		after, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, all, after)
	})
}

func TestLocalStorage_SetStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocal(t)

	order, err := s.Insert(ctx, sampleInput())
	require.NoError(t, err)

	updated, err := s.SetStatus(ctx, order.ID, orders.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, updated.Status)
	assert.Equal(t, order.Company, updated.Company)

	_, err = s.SetStatus(ctx, "missing", orders.StatusCompleted)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestLocalStorage_MalformedEntry(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{name: "orders is not an array", content: `{"orders": {"id": 1}}`},
		{name: "orders is null", content: `{"orders": null}`},
		{name: "file is not json", content: `<html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dashboard.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			s := NewLocalStorage(kv.NewFileStore(path), zap.NewNop())

			all, err := s.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			// the next write replaces the bad entry
			_, err = s.Insert(ctx, sampleInput())
			require.NoError(t, err)

			all, err = s.ListAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestLocalStorage_WriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockKV := mock_storage.NewMockKeyValue(ctrl)
	s := NewLocalStorage(mockKV, zap.NewNop())

	diskErr := errors.New("no space left on device")
	mockKV.EXPECT().Get(OrdersKey).Return(nil, false, nil)
	mockKV.EXPECT().Set(OrdersKey, gomock.Any()).Return(diskErr)

	_, err := s.Insert(ctx, sampleInput())
	assert.ErrorIs(t, err, orders.ErrPersistence)
	assert.ErrorIs(t, err, diskErr)
}
