package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/notify"
	"github.com/bookpress/backend/internal/modules/stock"
)

// BookCatalog is the slice of the catalog the order manager needs.
type BookCatalog interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}

// Service is the order lifecycle manager: the only component allowed to
// move stock for order-driven reasons. Every create/update/delete computes
// its ledger deltas, validates them, and applies them atomically before the
// order document changes.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, opts ListOptions) (*Page, error)
	Update(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error)
	Delete(ctx context.Context, id string) error
	SetPrintingStatus(ctx context.Context, id string, status PrintingStatus, updatedBy string) (*Order, error)
	SetDispatchStatus(ctx context.Context, id string, status DispatchStatus, trackingID, updatedBy string) (*Order, error)
}

// LineItemInput is one requested book/quantity pair.
type LineItemInput struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

// CourierInput holds courier fields on create/update requests.
type CourierInput struct {
	Type       string          `json:"type"`
	TrackingID string          `json:"tracking_id"`
	Charges    decimal.Decimal `json:"charges"`
}

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	Customer         Customer        `json:"customer"`
	Items            []LineItemInput `json:"items"`
	BundleIDs        []string        `json:"bundle_ids"`
	KitType          string          `json:"kit_type"`
	BatchType        string          `json:"batch_type"`
	OrderType        string          `json:"order_type"`
	Payment          decimal.Decimal `json:"payment"`
	RemainingPayment decimal.Decimal `json:"remaining_payment"`
	Remark           string          `json:"remark"`
	TransactionID    string          `json:"transaction_id"`
	Courier          CourierInput    `json:"courier"`
	CreatedBy        string          `json:"-"`
}

// UpdateOrderRequest overwrites an order. Items are diffed against the
// existing order to produce the net stock movement.
type UpdateOrderRequest struct {
	Customer         Customer        `json:"customer"`
	Items            []LineItemInput `json:"items"`
	BundleIDs        []string        `json:"bundle_ids"`
	KitType          string          `json:"kit_type"`
	BatchType        string          `json:"batch_type"`
	OrderType        string          `json:"order_type"`
	Payment          decimal.Decimal `json:"payment"`
	RemainingPayment decimal.Decimal `json:"remaining_payment"`
	Remark           string          `json:"remark"`
	TransactionID    string          `json:"transaction_id"`
	Courier          CourierInput    `json:"courier"`
	Status           Status          `json:"status"`
	IsCompleted      bool            `json:"is_completed"`
	UpdatedBy        string          `json:"-"`
}

type service struct {
	repo     Repository
	books    BookCatalog
	stocks   stock.Service
	notifier notify.Notifier
	log      logrus.FieldLogger
}

// NewService creates a new order service.
func NewService(repo Repository, books BookCatalog, stocks stock.Service,
	notifier notify.Notifier, log logrus.FieldLogger) Service {
	return &service{repo: repo, books: books, stocks: stocks, notifier: notifier, log: log}
}

func (s *service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}
	if req.TransactionID == "" {
		return nil, apperr.Validation("transaction_id", "is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("items", "order must contain at least one item")
	}
	createdBy, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		return nil, apperr.Validation("created_by", "invalid actor id")
	}

	items, deltas, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	bundleIDs, err := parseUUIDs(req.BundleIDs, "bundle_ids")
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:                 uuid.New(),
		Customer:           req.Customer,
		Items:              items,
		BundleIDs:          bundleIDs,
		KitType:            req.KitType,
		BatchType:          req.BatchType,
		OrderType:          req.OrderType,
		Payment:            req.Payment,
		RemainingPayment:   req.RemainingPayment,
		Remark:             req.Remark,
		TransactionID:      req.TransactionID,
		Courier:            Courier{Type: req.Courier.Type, TrackingID: req.Courier.TrackingID, Charges: req.Courier.Charges},
		Status:             Status{Printing: PrintingPending, Dispatch: DispatchPending},
		ReturnStatus:       ReturnNone,
		TotalReturnedValue: decimal.Zero,
		CreatedBy:          createdBy,
	}
	for _, item := range o.Items {
		item.OrderID = o.ID
	}

	// Reserve first: the ledger validates every line atomically, so a
	// failed reservation leaves nothing to clean up.
	if err := s.adjust(ctx, deltas); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		s.compensate(ctx, deltas)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
		"Dear %s, your order has been placed successfully. Transaction ID: %s. We'll notify you once your books are ready.",
		o.Customer.Name, o.TransactionID))
	return o, nil
}

func (s *service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	return s.repo.List(ctx, opts)
}

func (s *service) Update(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("items", "order must contain at least one item")
	}
	if err := validateStatus(req.Status); err != nil {
		return nil, err
	}
	updatedBy, err := uuid.Parse(req.UpdatedBy)
	if err != nil {
		return nil, apperr.Validation("updated_by", "invalid actor id")
	}

	items, requested, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	bundleIDs, err := parseUUIDs(req.BundleIDs, "bundle_ids")
	if err != nil {
		return nil, err
	}

	// Net delta per book across the union of old and new item sets:
	// releasing everything previously reserved and re-reserving the new
	// quantities collapses to new − old.
	var deltas []stock.Delta
	for _, item := range existing.Items {
		deltas = append(deltas, stock.Delta{BookID: item.BookID.String(), Qty: -item.Quantity})
	}
	deltas = append(deltas, requested...)

	if err := s.adjust(ctx, deltas); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Customer = req.Customer
	updated.Items = items
	updated.BundleIDs = bundleIDs
	updated.KitType = req.KitType
	updated.BatchType = req.BatchType
	updated.OrderType = req.OrderType
	updated.Payment = req.Payment
	updated.RemainingPayment = req.RemainingPayment
	updated.Remark = req.Remark
	if req.TransactionID != "" {
		updated.TransactionID = req.TransactionID
	}
	updated.Courier = Courier{Type: req.Courier.Type, TrackingID: req.Courier.TrackingID, Charges: req.Courier.Charges}
	updated.Status = req.Status
	updated.IsCompleted = req.IsCompleted
	updated.UpdatedBy = &updatedBy
	for _, item := range updated.Items {
		item.OrderID = updated.ID
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		s.compensate(ctx, deltas)
		return nil, fmt.Errorf("persist order update: %w", err)
	}

	// Dispatch notifications fire only when the dispatch value actually
	// changed in this update.
	if existing.Status.Dispatch != req.Status.Dispatch {
		switch req.Status.Dispatch {
		case DispatchDispatched:
			tracking := ""
			if req.Courier.TrackingID != "" {
				tracking = fmt.Sprintf(" Tracking ID: %s", req.Courier.TrackingID)
			}
			s.sendSMS(ctx, req.Customer.PhoneNumber, fmt.Sprintf(
				"Dear %s, your order has been dispatched!%s", req.Customer.Name, tracking))
		case DispatchDelivered:
			s.sendSMS(ctx, req.Customer.PhoneNumber, fmt.Sprintf(
				"Dear %s, your order has been marked as delivered. Thank you for your purchase!",
				req.Customer.Name))
		}
	}
	return &updated, nil
}

// Delete releases the order's reservations and removes the order. Ledger
// anomalies are logged and skipped; the order row is always removed.
func (s *service) Delete(ctx context.Context, id string) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, item := range o.Items {
		if err := s.stocks.Release(ctx, item.BookID.String(), item.Quantity); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id": o.ID,
				"book_id":  item.BookID,
			}).Warn("stock release failed during order deletion, continuing")
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) SetPrintingStatus(ctx context.Context, id string, status PrintingStatus, updatedBy string) (*Order, error) {
	switch status {
	case PrintingPending, PrintingInProgress, PrintingDone:
	default:
		return nil, apperr.Validation("status", fmt.Sprintf("unknown printing status %q", status))
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := uuid.Parse(updatedBy)
	if err != nil {
		return nil, apperr.Validation("updated_by", "invalid actor id")
	}
	o.Status.Printing = status
	o.UpdatedBy = &actor
	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}
	if status == PrintingDone {
		s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
			"Dear %s, your books have been printed and will be dispatched soon. Order ID: %s.",
			o.Customer.Name, o.ID))
	}
	return o, nil
}

func (s *service) SetDispatchStatus(ctx context.Context, id string, status DispatchStatus, trackingID, updatedBy string) (*Order, error) {
	switch status {
	case DispatchPending, DispatchDispatched, DispatchDelivered:
	default:
		return nil, apperr.Validation("status", fmt.Sprintf("unknown dispatch status %q", status))
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := uuid.Parse(updatedBy)
	if err != nil {
		return nil, apperr.Validation("updated_by", "invalid actor id")
	}
	o.Status.Dispatch = status
	if trackingID != "" {
		o.Courier.TrackingID = trackingID
	}
	o.UpdatedBy = &actor
	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}
	switch status {
	case DispatchDispatched:
		tracking := o.Courier.TrackingID
		if tracking == "" {
			tracking = "N/A"
		}
		s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
			"Dear %s, your order has been dispatched. Tracking ID: %s. Courier: %s.",
			o.Customer.Name, tracking, o.Courier.Type))
	case DispatchDelivered:
		s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
			"Dear %s, your order has been delivered. We hope you're satisfied with our service.",
			o.Customer.Name))
	}
	return o, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// buildItems resolves requested line items against the catalog and returns
// both the order items and the reservation deltas they imply.
func (s *service) buildItems(ctx context.Context, inputs []LineItemInput) ([]*LineItem, []stock.Delta, error) {
	var items []*LineItem
	var deltas []stock.Delta
	for _, in := range inputs {
		if in.Quantity < 1 {
			return nil, nil, apperr.Validation("quantity", fmt.Sprintf("must be at least 1 for book %s", in.BookID))
		}
		book, err := s.books.GetBook(ctx, in.BookID)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, &LineItem{
			ID:       uuid.New(),
			BookID:   book.ID,
			Quantity: in.Quantity,
		})
		deltas = append(deltas, stock.Delta{BookID: book.ID.String(), Qty: in.Quantity})
	}
	return items, deltas, nil
}

// adjust applies ledger deltas and enriches insufficient-stock errors with
// the book's SKU when it can be resolved.
func (s *service) adjust(ctx context.Context, deltas []stock.Delta) error {
	err := s.stocks.Adjust(ctx, deltas)
	if err == nil {
		return nil
	}
	var insufficient *apperr.InsufficientStockError
	if errors.As(err, &insufficient) && insufficient.SKU == "" {
		if book, lookupErr := s.books.GetBook(ctx, insufficient.BookID); lookupErr == nil {
			insufficient.SKU = book.SKU
		}
	}
	return err
}

// compensate reverses applied deltas after a failed document write.
func (s *service) compensate(ctx context.Context, deltas []stock.Delta) {
	reversed := make([]stock.Delta, len(deltas))
	for i, d := range deltas {
		reversed[i] = stock.Delta{BookID: d.BookID, Qty: -d.Qty}
	}
	if err := s.stocks.Adjust(ctx, reversed); err != nil {
		s.log.WithError(err).Warn("failed to reverse stock reservation after persistence error")
	}
}

func (s *service) sendSMS(ctx context.Context, phone, message string) {
	if err := s.notifier.Notify(ctx, phone, message); err != nil {
		s.log.WithError(err).WithField("phone", phone).Warn("sms notification failed")
	}
}

// validateStatus rejects status pairs outside the printing/dispatch enums.
// A request body that omits status decodes to empty strings; letting those
// through would blank the stored enum fields.
func validateStatus(st Status) error {
	switch st.Printing {
	case PrintingPending, PrintingInProgress, PrintingDone:
	default:
		return apperr.Validation("status.printing", fmt.Sprintf("unknown printing status %q", st.Printing))
	}
	switch st.Dispatch {
	case DispatchPending, DispatchDispatched, DispatchDelivered:
	default:
		return apperr.Validation("status.dispatch", fmt.Sprintf("unknown dispatch status %q", st.Dispatch))
	}
	return nil
}

func validateCustomer(c Customer) error {
	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"email", c.Email},
		{"phone_number", c.PhoneNumber},
		{"pin_code", c.PinCode},
		{"address", c.Address},
		{"state", c.State},
		{"city", c.City},
	}
	for _, f := range required {
		if f.value == "" {
			return apperr.Validation(f.field, "is required")
		}
	}
	return nil
}

func parseUUIDs(ids []string, field string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, apperr.Validation(field, fmt.Sprintf("invalid uuid %s", id))
		}
		out = append(out, uid)
	}
	return out, nil
}
