package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/deliveries/internal/storage/mocks"
)

type readinessRecorder struct {
	calls []bool
}

func (r *readinessRecorder) SetReady(ready bool) {
	r.calls = append(r.calls, ready)
}

func newValidator() *orders.Validator {
	return orders.NewValidator(orders.NewCatalog(nil))
}

func newLocalStore(t *testing.T) *Store {
	t.Helper()
	local, _ := newLocal(t)
	store := NewStore(local, newValidator(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	return store
}

func TestStore_InsertThenList(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	in := sampleInput()
	created, err := store.Insert(ctx, in)
	require.NoError(t, err)

	cached, err := store.Orders()
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{created}, cached)

	listed, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got := listed[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, in.CustomerName, got.CustomerName)
	assert.Equal(t, in.Company, got.Company)
	assert.Equal(t, in.ContainerSize, got.ContainerSize)
	assert.Equal(t, in.Quantity, got.Quantity)
	assert.True(t, in.DeliveryDate.Equal(got.DeliveryDate))
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestStore_InsertValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// the backend must never see invalid input
	backend := mock_storage.NewMockBackend(ctrl)
	store := NewStore(backend, newValidator(), zap.NewNop())

	in := sampleInput()
	in.Quantity = 0
	in.ContainerSize = "53ft New"

	_, err := store.Insert(context.Background(), in)
	require.Error(t, err)
	assert.True(t, orders.IsValidation(err))

	var ve *orders.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "quantity")
	assert.Contains(t, ve.Fields, "containerSize")
}

func TestStore_ToggleStatusTwiceIsIdentity(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	created, err := store.Insert(ctx, sampleInput())
	require.NoError(t, err)
	require.Equal(t, orders.StatusPending, created.Status)

	once, err := store.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, once.Status)

	cached, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, cached.Status)

	twice, err := store.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, twice)

	_, err = store.ToggleStatus(ctx, "missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	created, err := store.Insert(ctx, sampleInput())
	require.NoError(t, err)

	edited := created
	edited.CustomerName = "Olga Smirnova"
	edited.Status = orders.StatusCompleted

	updated, err := store.Update(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, edited, updated)

	cached, err := store.Orders()
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{edited}, cached)

	t.Run("invalid edit", func(t *testing.T) {
		bad := edited
		bad.CustomerName = "O"
		_, err := store.Update(ctx, bad)
		assert.True(t, orders.IsValidation(err))

		cached, err := store.Orders()
		require.NoError(t, err)
		assert.Equal(t, "Olga Smirnova", cached[0].CustomerName)
	})

	t.Run("unknown id", func(t *testing.T) {
		ghost := edited
		ghost.ID = "123"
		_, err := store.Update(ctx, ghost)
		assert.ErrorIs(t, err, orders.ErrNotFound)
	})
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	created, err := store.Insert(ctx, sampleInput())
	require.NoError(t, err)

	before, err := store.ListAll(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "does-not-exist"))

	after, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, store.Remove(ctx, created.ID))
	after, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestStore_Buckets(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)

	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	today := sampleInput()
	today.DeliveryDate = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	today.Quantity = 5
	today.ContainerSize = "40ft New"

	tomorrow := sampleInput()
	tomorrow.DeliveryDate = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	later := sampleInput()
	later.DeliveryDate = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

	todayOrder, err := store.Insert(ctx, today)
	require.NoError(t, err)
	tomorrowOrder, err := store.Insert(ctx, tomorrow)
	require.NoError(t, err)
	_, err = store.Insert(ctx, later)
	require.NoError(t, err)

	b, err := store.Buckets(now)
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{todayOrder}, b.Today)
	assert.Equal(t, []orders.Order{tomorrowOrder}, b.Tomorrow)

	all, err := store.Orders()
	require.NoError(t, err)
	assert.Len(t, all, 3, "orders outside both buckets stay in the collection")
}

func TestStore_LoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	backend := mock_storage.NewMockBackend(ctrl)
	readiness := &readinessRecorder{}
	store := NewStore(backend, newValidator(), zap.NewNop(), WithReadinessReporter(readiness))

	t.Run("not loaded yet", func(t *testing.T) {
		_, err := store.Orders()
		assert.ErrorIs(t, err, ErrNotReady)
		assert.False(t, store.Ready())
	})

	fetchErr := orders.Persistence("list orders", errors.New("connection refused"))

	t.Run("failed fetch blocks reads", func(t *testing.T) {
		backend.EXPECT().ListAll(ctx).Return(nil, fetchErr)

		err := store.Load(ctx)
		assert.ErrorIs(t, err, orders.ErrPersistence)

		_, err = store.Buckets(time.Now())
		assert.ErrorIs(t, err, ErrNotReady)
		assert.ErrorIs(t, err, orders.ErrPersistence)
	})

	t.Run("manual retry recovers", func(t *testing.T) {
		backend.EXPECT().ListAll(ctx).Return([]orders.Order{{ID: "1"}}, nil)

		require.NoError(t, store.Reload(ctx))
		assert.True(t, store.Ready())

		list, err := store.Orders()
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	assert.Equal(t, []bool{false, true}, readiness.calls)
}

func TestStore_FailedWriteKeepsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	backend := mock_storage.NewMockBackend(ctrl)
	store := NewStore(backend, newValidator(), zap.NewNop())

	existing := sampleInput().WithID("1")
	backend.EXPECT().ListAll(ctx).Return([]orders.Order{existing}, nil)
	require.NoError(t, store.Load(ctx))

	writeErr := orders.Persistence("save orders", errors.New("read-only file system"))

	backend.EXPECT().Insert(ctx, gomock.Any()).Return(orders.Order{}, writeErr)
	_, err := store.Insert(ctx, sampleInput())
	assert.ErrorIs(t, err, orders.ErrPersistence)

	backend.EXPECT().Remove(ctx, "1").Return(writeErr)
	assert.ErrorIs(t, store.Remove(ctx, "1"), orders.ErrPersistence)

	backend.EXPECT().Get(ctx, "1").Return(existing, nil)
	backend.EXPECT().SetStatus(ctx, "1", orders.StatusCompleted).Return(orders.Order{}, writeErr)
	_, err = store.ToggleStatus(ctx, "1")
	assert.ErrorIs(t, err, orders.ErrPersistence)

	list, err := store.Orders()
	require.NoError(t, err)
	assert.Equal(t, []orders.Order{existing}, list)
}
