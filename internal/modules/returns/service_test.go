package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/notify"
	"github.com/bookpress/backend/internal/modules/order"
	"github.com/bookpress/backend/internal/modules/stock"
)

const testActor = "0c2a3bb7-6a3f-4f4e-9a41-04f9df3ad6d1"

type returnsFixture struct {
	returns   Service
	orders    order.Service
	orderRepo order.Repository
	stocks    stock.Service
	bookX     *catalog.Book // sell price 100
	bookY     *catalog.Book // sell price 150
	order     *order.Order  // 2 copies of bookX
}

// newReturnsFixture wires the return processor against in-memory storage.
// The fixture order holds two copies of bookX (sell price 100); bookY (sell
// price 150) is stocked as replacement material.
func newReturnsFixture(t *testing.T) *returnsFixture {
	t.Helper()
	return newReturnsFixtureWithRepo(t, order.NewMemoryRepository())
}

func newReturnsFixtureWithRepo(t *testing.T, orderRepo order.Repository) *returnsFixture {
	t.Helper()
	ctx := context.Background()

	stocks := stock.NewService(stock.NewMemoryRepository())
	cat := catalog.NewService(catalog.NewMemoryBookRepository(), catalog.NewMemoryBundleRepository(), stocks)
	logger, _ := test.NewNullLogger()

	bundle, err := cat.CreateBundle(ctx, catalog.CreateBundleRequest{Name: "CA Foundation Kit"})
	require.NoError(t, err)
	bookX, err := cat.CreateBook(ctx, catalog.CreateBookRequest{
		SKU: "CAF-ACC-01", SellPrice: decimal.NewFromInt(100), BundleID: bundle.ID.String(),
	})
	require.NoError(t, err)
	bookY, err := cat.CreateBook(ctx, catalog.CreateBookRequest{
		SKU: "CAF-LAW-01", SellPrice: decimal.NewFromInt(150), BundleID: bundle.ID.String(),
	})
	require.NoError(t, err)
	require.NoError(t, stocks.Restock(ctx, bookX.ID.String(), 10))
	require.NoError(t, stocks.Restock(ctx, bookY.ID.String(), 10))

	orders := order.NewService(orderRepo, cat, stocks, notify.NewLogNotifier(logger), logger)
	o, err := orders.Create(ctx, order.CreateOrderRequest{
		Customer: order.Customer{
			Name: "Asha Verma", Email: "asha@example.com", PhoneNumber: "9876543210",
			PinCode: "110001", Address: "12 Lajpat Nagar", State: "Delhi", City: "New Delhi",
		},
		Items:         []order.LineItemInput{{BookID: bookX.ID.String(), Quantity: 2}},
		TransactionID: "TXN-1001",
		CreatedBy:     testActor,
	})
	require.NoError(t, err)

	svc := NewService(NewMemoryRepository(), orderRepo, cat, stocks, notify.NewLogNotifier(logger), logger)
	return &returnsFixture{
		returns:   svc,
		orders:    orders,
		orderRepo: orderRepo,
		stocks:    stocks,
		bookX:     bookX,
		bookY:     bookY,
		order:     o,
	}
}

func (f *returnsFixture) stockFor(t *testing.T, bookID string) *stock.Stock {
	t.Helper()
	rec, err := f.stocks.Get(context.Background(), bookID)
	require.NoError(t, err)
	return rec
}

func (f *returnsFixture) currentOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := f.orderRepo.GetByID(context.Background(), f.order.ID.String())
	require.NoError(t, err)
	return o
}

func assertDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, actual.Equal(decimal.NewFromInt(expected)),
		"expected %d, got %s", expected, actual)
}

func TestCreateReturnComputesRefund(t *testing.T) {
	f := newReturnsFixture(t)

	r, err := f.returns.CreateRequest(context.Background(), CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID:           f.bookX.ID.String(),
			AffectedQuantity: 2,
			Reason:           "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRequested, r.Status)
	assertDecimal(t, 200, r.Financials.TotalOrderValue)
	assertDecimal(t, 200, r.Financials.RefundAmount)
	assertDecimal(t, 0, r.Financials.AdditionalCharges)
	assertDecimal(t, -200, r.Financials.FinalAmount)

	assert.True(t, f.currentOrder(t).HasActiveReturn)
	// Stock does not move until the request completes.
	assert.Equal(t, 2, f.stockFor(t, f.bookX.ID.String()).OrderedStock)
}

func TestCreateReplacementNetsPriceDifference(t *testing.T) {
	f := newReturnsFixture(t)

	r, err := f.returns.CreateRequest(context.Background(), CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Replacement",
		Items: []ItemInput{{
			BookID:              f.bookX.ID.String(),
			AffectedQuantity:    1,
			Reason:              "Wrong Item",
			ReplacementBookID:   f.bookY.ID.String(),
			ReplacementQuantity: 1,
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	// 150 replacement against a 100 original: customer owes the difference.
	assertDecimal(t, 100, r.Financials.TotalOrderValue)
	assertDecimal(t, 0, r.Financials.RefundAmount)
	assertDecimal(t, 50, r.Financials.AdditionalCharges)
	assertDecimal(t, 50, r.Financials.FinalAmount)
}

func TestCreateReplacementCheaperBookRefundsDifference(t *testing.T) {
	f := newReturnsFixture(t)

	// Replace one 100-rupee bookX copy with a second bookX copy priced the
	// same: no money moves either way.
	r, err := f.returns.CreateRequest(context.Background(), CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Replacement",
		Items: []ItemInput{{
			BookID:            f.bookX.ID.String(),
			AffectedQuantity:  1,
			Reason:            "Printing Error",
			ReplacementBookID: f.bookX.ID.String(),
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)
	assertDecimal(t, 0, r.Financials.FinalAmount)
}

func TestCreateRequestRejectsSecondActiveRequest(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	item := ItemInput{BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Damaged"}
	_, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(), Type: "Return", Items: []ItemInput{item}, CreatedBy: testActor,
	})
	require.NoError(t, err)

	_, err = f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(), Type: "Return", Items: []ItemInput{item}, CreatedBy: testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestCreateRequestValidatesItems(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	// Book not on the order.
	_, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookY.ID.String(), AffectedQuantity: 1, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	assert.True(t, apperr.IsValidation(err))

	// Affected quantity above the ordered quantity.
	_, err = f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 3, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	assert.True(t, apperr.IsValidation(err))

	// Unknown reason.
	_, err = f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Changed Mind",
		}},
		CreatedBy: testActor,
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestCompleteReturnReleasesStockAndMarksOrder(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 2, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	completed, err := f.returns.Process(ctx, r.ID.String(), ProcessRequest{
		Action: "complete", TransactionID: "RFD-1", ProcessedBy: testActor,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.Resolution)
	assert.Equal(t, "RFD-1", completed.Resolution.TransactionID)

	rec := f.stockFor(t, f.bookX.ID.String())
	assert.Equal(t, 10, rec.CurrentStock)
	assert.Equal(t, 0, rec.OrderedStock)

	o := f.currentOrder(t)
	assert.Equal(t, order.ReturnFull, o.ReturnStatus)
	assert.False(t, o.HasActiveReturn)
	assertDecimal(t, 200, o.TotalReturnedValue)
}

func TestCompletePartialReturnMarksOrderPartial(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Quality Issue",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.NoError(t, err)

	o := f.currentOrder(t)
	assert.Equal(t, order.ReturnPartial, o.ReturnStatus)
	assertDecimal(t, 100, o.TotalReturnedValue)
}

func TestCompleteReplacementMovesBothBooksAtomically(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Replacement",
		Items: []ItemInput{{
			BookID:              f.bookX.ID.String(),
			AffectedQuantity:    1,
			Reason:              "Wrong Item",
			ReplacementBookID:   f.bookY.ID.String(),
			ReplacementQuantity: 1,
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.NoError(t, err)

	recX := f.stockFor(t, f.bookX.ID.String())
	assert.Equal(t, 9, recX.CurrentStock)
	assert.Equal(t, 1, recX.OrderedStock)

	recY := f.stockFor(t, f.bookY.ID.String())
	assert.Equal(t, 9, recY.CurrentStock)
	assert.Equal(t, 1, recY.OrderedStock)
}

func TestCompleteReplacementFailsAtomicallyWhenReplacementOutOfStock(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	// Drain bookY so the replacement cannot be reserved.
	require.NoError(t, f.stocks.Reserve(ctx, f.bookY.ID.String(), 10))

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Replacement",
		Items: []ItemInput{{
			BookID:            f.bookX.ID.String(),
			AffectedQuantity:  1,
			Reason:            "Damaged",
			ReplacementBookID: f.bookY.ID.String(),
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	// The release of bookX must not have landed either.
	recX := f.stockFor(t, f.bookX.ID.String())
	assert.Equal(t, 8, recX.CurrentStock)
	assert.Equal(t, 2, recX.OrderedStock)

	stored, err := f.returns.Get(ctx, r.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, stored.Status)
}

func TestRejectClearsActiveReturnWithoutStockMovement(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 2, Reason: "Customer Request",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	rejected, err := f.returns.Process(ctx, r.ID.String(), ProcessRequest{
		Action: "reject", Notes: "outside return window", ProcessedBy: testActor,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	o := f.currentOrder(t)
	assert.False(t, o.HasActiveReturn)
	assert.Equal(t, order.ReturnNone, o.ReturnStatus)
	assert.Equal(t, 2, f.stockFor(t, f.bookX.ID.String()).OrderedStock)

	// Terminal requests cannot be processed again.
	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.Error(t, err)
	var transition *apperr.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, string(StatusRejected), transition.From)
}

func TestDeleteCompletedRequestRefused(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Other",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)
	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.NoError(t, err)

	err = f.returns.Delete(ctx, r.ID.String())
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestDeletePendingRequestClearsActiveFlag(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	require.NoError(t, f.returns.Delete(ctx, r.ID.String()))
	assert.False(t, f.currentOrder(t).HasActiveReturn)

	_, err = f.returns.Get(ctx, r.ID.String())
	assert.True(t, apperr.IsNotFound(err))
}

func TestStatsCountsActiveRequests(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	stats, err := f.returns.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.ActiveRequests)

	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "reject", ProcessedBy: testActor})
	require.NoError(t, err)

	stats, err = f.returns.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Zero(t, stats.ActiveRequests)
}

func TestCompleteReturnFullWhenEveryRequestedBookFullyAffected(t *testing.T) {
	f := newReturnsFixture(t)
	ctx := context.Background()

	// A two-book order. The request covers only bookX, but covers every
	// copy of it, so the order is marked a full return.
	o, err := f.orders.Create(ctx, order.CreateOrderRequest{
		Customer: order.Customer{
			Name: "Ravi Nair", Email: "ravi@example.com", PhoneNumber: "9812345670",
			PinCode: "400001", Address: "4 Marine Drive", State: "Maharashtra", City: "Mumbai",
		},
		Items: []order.LineItemInput{
			{BookID: f.bookX.ID.String(), Quantity: 1},
			{BookID: f.bookY.ID.String(), Quantity: 1},
		},
		TransactionID: "TXN-1002",
		CreatedBy:     testActor,
	})
	require.NoError(t, err)

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: o.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	_, err = f.returns.Process(ctx, r.ID.String(), ProcessRequest{Action: "complete", ProcessedBy: testActor})
	require.NoError(t, err)

	got, err := f.orderRepo.GetByID(ctx, o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, order.ReturnFull, got.ReturnStatus)
	assert.False(t, got.HasActiveReturn)
	assertDecimal(t, 100, got.TotalReturnedValue)
}

// flakyOrderRepo fails UpdateReturnState on demand so tests can exercise the
// delete path when the order store is unavailable.
type flakyOrderRepo struct {
	order.Repository
	failReturnState bool
}

func (r *flakyOrderRepo) UpdateReturnState(ctx context.Context, orderID string, state order.ReturnState) error {
	if r.failReturnState {
		return errors.New("orders storage unavailable")
	}
	return r.Repository.UpdateReturnState(ctx, orderID, state)
}

func TestDeleteKeepsRequestWhenClearingActiveFlagFails(t *testing.T) {
	flaky := &flakyOrderRepo{Repository: order.NewMemoryRepository()}
	f := newReturnsFixtureWithRepo(t, flaky)
	ctx := context.Background()

	r, err := f.returns.CreateRequest(ctx, CreateRequest{
		OrderID: f.order.ID.String(),
		Type:    "Return",
		Items: []ItemInput{{
			BookID: f.bookX.ID.String(), AffectedQuantity: 1, Reason: "Damaged",
		}},
		CreatedBy: testActor,
	})
	require.NoError(t, err)

	flaky.failReturnState = true
	err = f.returns.Delete(ctx, r.ID.String())
	require.Error(t, err)

	// The request survives, so the delete can be retried once the store
	// recovers.
	_, err = f.returns.Get(ctx, r.ID.String())
	require.NoError(t, err)

	flaky.failReturnState = false
	require.NoError(t, f.returns.Delete(ctx, r.ID.String()))

	_, err = f.returns.Get(ctx, r.ID.String())
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, f.currentOrder(t).HasActiveReturn)
}
