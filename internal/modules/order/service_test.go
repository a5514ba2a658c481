package order

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/stock"
)

const testActor = "0c2a3bb7-6a3f-4f4e-9a41-04f9df3ad6d1"

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type orderFixture struct {
	orders   Service
	catalog  catalog.Service
	stocks   stock.Service
	notifier *fakeNotifier
	bookA    *catalog.Book
	bookB    *catalog.Book
}

// newOrderFixture wires the order service against in-memory storage with two
// books stocked at 10 units each.
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	ctx := context.Background()

	stocks := stock.NewService(stock.NewMemoryRepository())
	cat := catalog.NewService(catalog.NewMemoryBookRepository(), catalog.NewMemoryBundleRepository(), stocks)

	bundle, err := cat.CreateBundle(ctx, catalog.CreateBundleRequest{Name: "CA Foundation Kit"})
	require.NoError(t, err)

	bookA, err := cat.CreateBook(ctx, catalog.CreateBookRequest{
		SKU: "CAF-ACC-01", SellPrice: decimal.NewFromInt(450), BundleID: bundle.ID.String(),
	})
	require.NoError(t, err)
	bookB, err := cat.CreateBook(ctx, catalog.CreateBookRequest{
		SKU: "CAF-LAW-01", SellPrice: decimal.NewFromInt(500), BundleID: bundle.ID.String(),
	})
	require.NoError(t, err)

	require.NoError(t, stocks.Restock(ctx, bookA.ID.String(), 10))
	require.NoError(t, stocks.Restock(ctx, bookB.ID.String(), 10))

	notifier := &fakeNotifier{}
	logger, _ := test.NewNullLogger()
	orders := NewService(NewMemoryRepository(), cat, stocks, notifier, logger)

	return &orderFixture{
		orders:   orders,
		catalog:  cat,
		stocks:   stocks,
		notifier: notifier,
		bookA:    bookA,
		bookB:    bookB,
	}
}

func testCustomer() Customer {
	return Customer{
		Name:        "Asha Verma",
		Email:       "asha@example.com",
		PhoneNumber: "9876543210",
		PinCode:     "110001",
		Address:     "12 Lajpat Nagar",
		State:       "Delhi",
		City:        "New Delhi",
	}
}

func (f *orderFixture) createOrder(t *testing.T, items []LineItemInput) *Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), CreateOrderRequest{
		Customer:      testCustomer(),
		Items:         items,
		TransactionID: "TXN-1001",
		CreatedBy:     testActor,
	})
	require.NoError(t, err)
	return o
}

func (f *orderFixture) stockFor(t *testing.T, bookID string) *stock.Stock {
	t.Helper()
	rec, err := f.stocks.Get(context.Background(), bookID)
	require.NoError(t, err)
	return rec
}

func TestCreateOrderReservesStock(t *testing.T) {
	f := newOrderFixture(t)

	o := f.createOrder(t, []LineItemInput{
		{BookID: f.bookA.ID.String(), Quantity: 3},
		{BookID: f.bookB.ID.String(), Quantity: 2},
	})
	assert.Equal(t, PrintingPending, o.Status.Printing)
	assert.Equal(t, DispatchPending, o.Status.Dispatch)
	assert.Equal(t, ReturnNone, o.ReturnStatus)

	recA := f.stockFor(t, f.bookA.ID.String())
	assert.Equal(t, 7, recA.CurrentStock)
	assert.Equal(t, 3, recA.OrderedStock)

	recB := f.stockFor(t, f.bookB.ID.String())
	assert.Equal(t, 8, recB.CurrentStock)
	assert.Equal(t, 2, recB.OrderedStock)

	messages := f.notifier.sent()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "placed successfully")
}

func TestCreateOrderInsufficientStockCreatesNothing(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.orders.Create(context.Background(), CreateOrderRequest{
		Customer: testCustomer(),
		Items: []LineItemInput{
			{BookID: f.bookA.ID.String(), Quantity: 2},
			{BookID: f.bookB.ID.String(), Quantity: 11},
		},
		TransactionID: "TXN-1002",
		CreatedBy:     testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	var insufficient *apperr.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "CAF-LAW-01", insufficient.SKU)

	// Both ledgers untouched.
	assert.Equal(t, 10, f.stockFor(t, f.bookA.ID.String()).CurrentStock)
	assert.Equal(t, 10, f.stockFor(t, f.bookB.ID.String()).CurrentStock)

	page, err := f.orders.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalOrders)
}

func TestCreateOrderRequiresCustomerFields(t *testing.T) {
	f := newOrderFixture(t)

	customer := testCustomer()
	customer.PinCode = ""
	_, err := f.orders.Create(context.Background(), CreateOrderRequest{
		Customer:      customer,
		Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 1}},
		TransactionID: "TXN-1003",
		CreatedBy:     testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "pin_code")
}

func TestUpdateOrderWithSameItemsLeavesLedgerUnchanged(t *testing.T) {
	f := newOrderFixture(t)
	items := []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 4}}
	o := f.createOrder(t, items)

	_, err := f.orders.Update(context.Background(), o.ID.String(), UpdateOrderRequest{
		Customer:      testCustomer(),
		Items:         items,
		TransactionID: o.TransactionID,
		Status:        o.Status,
		UpdatedBy:     testActor,
	})
	require.NoError(t, err)

	rec := f.stockFor(t, f.bookA.ID.String())
	assert.Equal(t, 6, rec.CurrentStock)
	assert.Equal(t, 4, rec.OrderedStock)
}

func TestUpdateOrderAppliesNetDelta(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{
		{BookID: f.bookA.ID.String(), Quantity: 4},
		{BookID: f.bookB.ID.String(), Quantity: 1},
	})

	// Drop bookB, shrink bookA to 2.
	_, err := f.orders.Update(context.Background(), o.ID.String(), UpdateOrderRequest{
		Customer:      testCustomer(),
		Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 2}},
		TransactionID: o.TransactionID,
		Status:        o.Status,
		UpdatedBy:     testActor,
	})
	require.NoError(t, err)

	recA := f.stockFor(t, f.bookA.ID.String())
	assert.Equal(t, 8, recA.CurrentStock)
	assert.Equal(t, 2, recA.OrderedStock)

	recB := f.stockFor(t, f.bookB.ID.String())
	assert.Equal(t, 10, recB.CurrentStock)
	assert.Equal(t, 0, recB.OrderedStock)
}

func TestUpdateOrderInsufficientStockChangesNothing(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 4}})

	_, err := f.orders.Update(context.Background(), o.ID.String(), UpdateOrderRequest{
		Customer:      testCustomer(),
		Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 15}},
		TransactionID: o.TransactionID,
		Status:        o.Status,
		UpdatedBy:     testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	rec := f.stockFor(t, f.bookA.ID.String())
	assert.Equal(t, 6, rec.CurrentStock)
	assert.Equal(t, 4, rec.OrderedStock)

	stored, err := f.orders.Get(context.Background(), o.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 4, stored.Items[0].Quantity)
}

func TestUpdateOrderRejectsUnknownStatus(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 2}})

	// A body that omits status decodes to the zero pair; it must not blank
	// the stored enums.
	_, err := f.orders.Update(context.Background(), o.ID.String(), UpdateOrderRequest{
		Customer:      testCustomer(),
		Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 2}},
		TransactionID: o.TransactionID,
		UpdatedBy:     testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "status.printing")

	_, err = f.orders.Update(context.Background(), o.ID.String(), UpdateOrderRequest{
		Customer:      testCustomer(),
		Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 2}},
		TransactionID: o.TransactionID,
		Status:        Status{Printing: PrintingPending, Dispatch: "Shipped"},
		UpdatedBy:     testActor,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "status.dispatch")

	stored, err := f.orders.Get(context.Background(), o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, PrintingPending, stored.Status.Printing)
	assert.Equal(t, DispatchPending, stored.Status.Dispatch)

	rec := f.stockFor(t, f.bookA.ID.String())
	assert.Equal(t, 8, rec.CurrentStock)
	assert.Equal(t, 2, rec.OrderedStock)
}

func TestDeleteOrderReleasesReservations(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{
		{BookID: f.bookA.ID.String(), Quantity: 3},
		{BookID: f.bookB.ID.String(), Quantity: 2},
	})

	require.NoError(t, f.orders.Delete(context.Background(), o.ID.String()))

	assert.Equal(t, 10, f.stockFor(t, f.bookA.ID.String()).CurrentStock)
	assert.Equal(t, 10, f.stockFor(t, f.bookB.ID.String()).CurrentStock)

	_, err := f.orders.Get(context.Background(), o.ID.String())
	assert.True(t, apperr.IsNotFound(err))
}

func TestSetDispatchStatusNotifiesCustomer(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 1}})

	updated, err := f.orders.SetDispatchStatus(context.Background(), o.ID.String(),
		DispatchDispatched, "AWB-778899", testActor)
	require.NoError(t, err)
	assert.Equal(t, DispatchDispatched, updated.Status.Dispatch)
	assert.Equal(t, "AWB-778899", updated.Courier.TrackingID)

	messages := f.notifier.sent()
	require.Len(t, messages, 2) // creation + dispatch
	assert.Contains(t, messages[1], "AWB-778899")
}

func TestSetPrintingStatusRejectsUnknownValue(t *testing.T) {
	f := newOrderFixture(t)
	o := f.createOrder(t, []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 1}})

	_, err := f.orders.SetPrintingStatus(context.Background(), o.ID.String(),
		PrintingStatus("Shipped"), testActor)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestListOrdersSearchAndPagination(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		customer := testCustomer()
		customer.Name = "Customer " + strings.Repeat("X", i+1)
		_, err := f.orders.Create(ctx, CreateOrderRequest{
			Customer:      customer,
			Items:         []LineItemInput{{BookID: f.bookA.ID.String(), Quantity: 1}},
			TransactionID: "TXN-200" + strings.Repeat("0", i+1),
			CreatedBy:     testActor,
		})
		require.NoError(t, err)
	}

	page, err := f.orders.List(ctx, ListOptions{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, 3, page.TotalOrders)
	assert.Equal(t, 2, page.TotalPages)

	page, err = f.orders.List(ctx, ListOptions{Search: "Customer XX"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalOrders) // XX matches XX and XXX
}
