package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookpress/backend/internal/apperr"
)

func newTestService(t *testing.T) (Service, string) {
	t.Helper()
	svc := NewService(NewMemoryRepository())
	bookID := uuid.NewString()
	_, err := svc.CreateRecord(context.Background(), bookID)
	require.NoError(t, err)
	return svc, bookID
}

func TestCreateRecordStartsZeroed(t *testing.T) {
	svc, bookID := newTestService(t)

	rec, err := svc.Get(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TotalStock)
	assert.Equal(t, 0, rec.CurrentStock)
	assert.Equal(t, 0, rec.OrderedStock)
}

func TestReserveAndReleaseKeepTotalConstant(t *testing.T) {
	svc, bookID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Restock(ctx, bookID, 10))
	require.NoError(t, svc.Reserve(ctx, bookID, 4))

	rec, err := svc.Get(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.TotalStock)
	assert.Equal(t, 6, rec.CurrentStock)
	assert.Equal(t, 4, rec.OrderedStock)
	assert.Equal(t, rec.TotalStock, rec.CurrentStock+rec.OrderedStock)

	require.NoError(t, svc.Release(ctx, bookID, 4))
	rec, err = svc.Get(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.TotalStock)
	assert.Equal(t, 10, rec.CurrentStock)
	assert.Equal(t, 0, rec.OrderedStock)
}

func TestReserveBeyondCurrentStockFails(t *testing.T) {
	svc, bookID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Restock(ctx, bookID, 3))
	err := svc.Reserve(ctx, bookID, 5)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	var insufficient *apperr.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Available)
	assert.Equal(t, 5, insufficient.Requested)

	// Nothing moved.
	rec, err := svc.Get(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.CurrentStock)
	assert.Equal(t, 0, rec.OrderedStock)
}

func TestReleaseBeyondOrderedStockFails(t *testing.T) {
	svc, bookID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Restock(ctx, bookID, 5))
	require.NoError(t, svc.Reserve(ctx, bookID, 2))

	err := svc.Release(ctx, bookID, 3)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	svc, bookID := newTestService(t)

	assert.True(t, apperr.IsValidation(svc.Reserve(context.Background(), bookID, 0)))
	assert.True(t, apperr.IsValidation(svc.Reserve(context.Background(), bookID, -1)))
	assert.True(t, apperr.IsValidation(svc.Restock(context.Background(), bookID, 0)))
}

func TestAdjustMultiBookIsAllOrNothing(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	bookA := uuid.NewString()
	bookB := uuid.NewString()
	for _, id := range []string{bookA, bookB} {
		_, err := svc.CreateRecord(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Restock(ctx, bookA, 10))
	require.NoError(t, svc.Restock(ctx, bookB, 1))

	// Second delta exceeds bookB's stock, so the whole batch must fail.
	err := svc.Adjust(ctx, []Delta{
		{BookID: bookA, Qty: 5},
		{BookID: bookB, Qty: 2},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	recA, err := svc.Get(ctx, bookA)
	require.NoError(t, err)
	assert.Equal(t, 10, recA.CurrentStock)
	assert.Equal(t, 0, recA.OrderedStock)

	recB, err := svc.Get(ctx, bookB)
	require.NoError(t, err)
	assert.Equal(t, 1, recB.CurrentStock)
}

func TestAdjustMergesRepeatedBookIDs(t *testing.T) {
	svc, bookID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Restock(ctx, bookID, 5))
	require.NoError(t, svc.Adjust(ctx, []Delta{
		{BookID: bookID, Qty: 3},
		{BookID: bookID, Qty: -1},
	}))

	rec, err := svc.Get(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.OrderedStock)
	assert.Equal(t, 3, rec.CurrentStock)
}

func TestAdjustUnknownBookFails(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	err := svc.Adjust(context.Background(), []Delta{{BookID: uuid.NewString(), Qty: 1}})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
