package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/notify"
	"github.com/bookpress/backend/internal/modules/order"
	"github.com/bookpress/backend/internal/modules/stock"
)

// BookCatalog is the slice of the catalog the return processor needs.
type BookCatalog interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}

// Service manages return and replacement requests. Financials are computed
// once at creation; stock moves only when a request completes, and it moves
// as one atomic batch.
type Service interface {
	CreateRequest(ctx context.Context, req CreateRequest) (*Request, error)
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, opts ListOptions) (*Page, error)
	Process(ctx context.Context, id string, req ProcessRequest) (*Request, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
}

// ItemInput is one affected book in a create request.
type ItemInput struct {
	BookID              string `json:"book_id"`
	AffectedQuantity    int    `json:"affected_quantity"`
	Reason              string `json:"reason"`
	ReplacementBookID   string `json:"replacement_book_id,omitempty"`
	ReplacementQuantity int    `json:"replacement_quantity,omitempty"`
}

// CreateRequest is the payload for opening a return or replacement request.
type CreateRequest struct {
	OrderID    string      `json:"order_id"`
	Type       string      `json:"type"`
	Items      []ItemInput `json:"items"`
	AdminNotes string      `json:"admin_notes"`
	CreatedBy  string      `json:"-"`
}

// ProcessRequest advances a request through its lifecycle.
type ProcessRequest struct {
	Action        string `json:"action"` // approve, reject, complete
	TransactionID string `json:"transaction_id"`
	Notes         string `json:"notes"`
	ProcessedBy   string `json:"-"`
}

type service struct {
	repo     Repository
	orders   order.Repository
	books    BookCatalog
	stocks   stock.Service
	notifier notify.Notifier
	log      logrus.FieldLogger
}

// NewService creates a new return/replacement service.
func NewService(repo Repository, orders order.Repository, books BookCatalog,
	stocks stock.Service, notifier notify.Notifier, log logrus.FieldLogger) Service {
	return &service{repo: repo, orders: orders, books: books, stocks: stocks,
		notifier: notifier, log: log}
}

func (s *service) CreateRequest(ctx context.Context, req CreateRequest) (*Request, error) {
	reqType := Type(req.Type)
	if reqType != TypeReturn && reqType != TypeReplacement {
		return nil, apperr.Validation("type", fmt.Sprintf("unknown request type %q", req.Type))
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("items", "request must contain at least one item")
	}
	createdBy, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		return nil, apperr.Validation("created_by", "invalid actor id")
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	// One active request per order. A second one would race the first over
	// the same line items.
	if o.HasActiveReturn {
		return nil, apperr.Conflict("order already has an active return/replacement request")
	}

	r := &Request{
		ID:         uuid.New(),
		OrderID:    o.ID,
		Type:       reqType,
		Status:     StatusRequested,
		AdminNotes: req.AdminNotes,
		CreatedBy:  createdBy,
	}
	fin := Financials{
		TotalOrderValue:   decimal.Zero,
		RefundAmount:      decimal.Zero,
		AdditionalCharges: decimal.Zero,
	}

	for _, in := range req.Items {
		item, itemFin, err := s.buildItem(ctx, o, reqType, in)
		if err != nil {
			return nil, err
		}
		item.RequestID = r.ID
		r.Items = append(r.Items, item)
		fin.TotalOrderValue = fin.TotalOrderValue.Add(itemFin.TotalOrderValue)
		fin.RefundAmount = fin.RefundAmount.Add(itemFin.RefundAmount)
		fin.AdditionalCharges = fin.AdditionalCharges.Add(itemFin.AdditionalCharges)
	}
	fin.FinalAmount = fin.AdditionalCharges.Sub(fin.RefundAmount)
	r.Financials = fin

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("persist return request: %w", err)
	}
	if err := s.orders.UpdateReturnState(ctx, o.ID.String(), order.ReturnState{
		ReturnStatus:       o.ReturnStatus,
		HasActiveReturn:    true,
		TotalReturnedValue: o.TotalReturnedValue,
	}); err != nil {
		return nil, fmt.Errorf("flag order active return: %w", err)
	}

	s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
		"Dear %s, your %s request has been received and is under review. Request ID: %s.",
		o.Customer.Name, requestNoun(reqType), r.ID))
	return r, nil
}

func (s *service) Get(ctx context.Context, id string) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, opts ListOptions) (*Page, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 50 {
		opts.Limit = 50
	}
	return s.repo.List(ctx, opts)
}

func (s *service) Process(ctx context.Context, id string, req ProcessRequest) (*Request, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var target RequestStatus
	switch req.Action {
	case "approve":
		target = StatusApproved
	case "reject":
		target = StatusRejected
	case "complete":
		target = StatusCompleted
	default:
		return nil, apperr.Validation("action", fmt.Sprintf("unknown action %q", req.Action))
	}
	if r.Status.Terminal() {
		return nil, &apperr.InvalidTransitionError{
			Entity: "return request",
			From:   string(r.Status),
			To:     string(target),
		}
	}
	processedBy, err := uuid.Parse(req.ProcessedBy)
	if err != nil {
		return nil, apperr.Validation("processed_by", "invalid actor id")
	}

	switch req.Action {
	case "approve":
		r.Status = StatusApproved
		if err := s.repo.Update(ctx, r); err != nil {
			return nil, fmt.Errorf("persist approval: %w", err)
		}
		return r, nil
	case "reject":
		return s.reject(ctx, r, processedBy, req)
	default:
		return s.complete(ctx, r, processedBy, req)
	}
}

// reject closes the request without touching the ledger and releases the
// order's active-return slot.
func (s *service) reject(ctx context.Context, r *Request, processedBy uuid.UUID, req ProcessRequest) (*Request, error) {
	o, err := s.orders.GetByID(ctx, r.OrderID.String())
	if err != nil {
		return nil, err
	}
	r.Status = StatusRejected
	r.Resolution = &Resolution{
		ProcessedAt:   time.Now().UTC(),
		ProcessedBy:   processedBy,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("persist rejection: %w", err)
	}
	if err := s.orders.UpdateReturnState(ctx, o.ID.String(), order.ReturnState{
		ReturnStatus:       o.ReturnStatus,
		HasActiveReturn:    false,
		TotalReturnedValue: o.TotalReturnedValue,
	}); err != nil {
		return nil, fmt.Errorf("clear order active return: %w", err)
	}
	s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
		"Dear %s, your %s request %s has been reviewed and could not be approved. Please contact support for details.",
		o.Customer.Name, requestNoun(r.Type), r.ID))
	return r, nil
}

// complete applies the request's full stock effect as one atomic batch:
// every affected quantity is released back to sellable stock and, for
// replacements, the replacement quantities are reserved in the same call.
// Either the whole batch lands or the ledger is untouched.
func (s *service) complete(ctx context.Context, r *Request, processedBy uuid.UUID, req ProcessRequest) (*Request, error) {
	o, err := s.orders.GetByID(ctx, r.OrderID.String())
	if err != nil {
		return nil, err
	}

	var deltas []stock.Delta
	fullReturn := true
	for _, item := range r.Items {
		deltas = append(deltas, stock.Delta{BookID: item.BookID.String(), Qty: -item.AffectedQuantity})
		if r.Type == TypeReplacement && item.ReplacementBookID != nil {
			deltas = append(deltas, stock.Delta{
				BookID: item.ReplacementBookID.String(),
				Qty:    item.replacementQty(),
			})
		}
		if item.AffectedQuantity < item.OrderedQuantity {
			fullReturn = false
		}
	}
	if err := s.adjust(ctx, deltas); err != nil {
		return nil, err
	}

	r.Status = StatusCompleted
	r.Resolution = &Resolution{
		ProcessedAt:   time.Now().UTC(),
		ProcessedBy:   processedBy,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	status := order.ReturnPartial
	if fullReturn {
		status = order.ReturnFull
	}
	if err := s.orders.UpdateReturnState(ctx, o.ID.String(), order.ReturnState{
		ReturnStatus:       status,
		HasActiveReturn:    false,
		TotalReturnedValue: o.TotalReturnedValue.Add(r.Financials.TotalOrderValue),
	}); err != nil {
		return nil, fmt.Errorf("update order return state: %w", err)
	}

	s.sendSMS(ctx, o.Customer.PhoneNumber, fmt.Sprintf(
		"Dear %s, your %s request %s has been completed. Final amount: %s.",
		o.Customer.Name, requestNoun(r.Type), r.ID, r.Financials.FinalAmount.StringFixed(2)))
	return r, nil
}

// Delete removes a non-completed request and frees the order's active-return
// slot. Completed requests have already moved stock and money and stay on
// record.
func (s *service) Delete(ctx context.Context, id string) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.Status == StatusCompleted {
		return apperr.Conflict("completed requests cannot be deleted")
	}
	// Clear the gate before removing the request: if the flag write fails
	// the request survives and the delete can be retried, instead of the
	// order staying gated with no request on record.
	o, err := s.orders.GetByID(ctx, r.OrderID.String())
	switch {
	case apperr.IsNotFound(err):
		// Order was deleted independently; nothing left to clear.
	case err != nil:
		return err
	default:
		if err := s.orders.UpdateReturnState(ctx, o.ID.String(), order.ReturnState{
			ReturnStatus:       o.ReturnStatus,
			HasActiveReturn:    false,
			TotalReturnedValue: o.TotalReturnedValue,
		}); err != nil {
			return fmt.Errorf("clear order active return: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// buildItem validates one requested item against the order and computes its
// financial contribution.
func (s *service) buildItem(ctx context.Context, o *order.Order, reqType Type, in ItemInput) (*Item, Financials, error) {
	var zero Financials
	bookID, err := uuid.Parse(in.BookID)
	if err != nil {
		return nil, zero, apperr.Validation("book_id", fmt.Sprintf("invalid uuid %s", in.BookID))
	}
	ordered := o.QuantityFor(bookID)
	if ordered == 0 {
		return nil, zero, apperr.Validation("book_id", fmt.Sprintf("book %s is not part of the order", in.BookID))
	}
	if in.AffectedQuantity < 1 {
		return nil, zero, apperr.Validation("affected_quantity", "must be at least 1")
	}
	if in.AffectedQuantity > ordered {
		return nil, zero, apperr.Validation("affected_quantity",
			fmt.Sprintf("exceeds ordered quantity %d for book %s", ordered, in.BookID))
	}
	if !validReason(Reason(in.Reason)) {
		return nil, zero, apperr.Validation("reason", fmt.Sprintf("unknown reason %q", in.Reason))
	}

	book, err := s.books.GetBook(ctx, in.BookID)
	if err != nil {
		return nil, zero, err
	}
	affectedValue := book.SellPrice.Mul(decimal.NewFromInt(int64(in.AffectedQuantity)))

	item := &Item{
		ID:               uuid.New(),
		BookID:           bookID,
		OrderedQuantity:  ordered,
		AffectedQuantity: in.AffectedQuantity,
		Reason:           Reason(in.Reason),
	}
	fin := Financials{
		TotalOrderValue:   affectedValue,
		RefundAmount:      decimal.Zero,
		AdditionalCharges: decimal.Zero,
	}

	if reqType == TypeReturn {
		if in.ReplacementBookID != "" {
			return nil, zero, apperr.Validation("replacement_book_id", "not allowed on a return request")
		}
		fin.RefundAmount = affectedValue
		return item, fin, nil
	}

	// Replacement: price the replacement line and net it against the value
	// of what comes back.
	if in.ReplacementBookID == "" {
		return nil, zero, apperr.Validation("replacement_book_id", "is required on a replacement request")
	}
	replID, err := uuid.Parse(in.ReplacementBookID)
	if err != nil {
		return nil, zero, apperr.Validation("replacement_book_id", fmt.Sprintf("invalid uuid %s", in.ReplacementBookID))
	}
	if in.ReplacementQuantity < 0 {
		return nil, zero, apperr.Validation("replacement_quantity", "must not be negative")
	}
	replBook, err := s.books.GetBook(ctx, in.ReplacementBookID)
	if err != nil {
		return nil, zero, err
	}
	item.ReplacementBookID = &replID
	item.ReplacementQuantity = in.ReplacementQuantity

	replValue := replBook.SellPrice.Mul(decimal.NewFromInt(int64(item.replacementQty())))
	diff := replValue.Sub(affectedValue)
	if diff.IsPositive() {
		fin.AdditionalCharges = diff
	} else {
		fin.RefundAmount = diff.Neg()
	}
	return item, fin, nil
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

func (s *service) sendSMS(ctx context.Context, phone, message string) {
	if err := s.notifier.Notify(ctx, phone, message); err != nil {
		s.log.WithError(err).WithField("phone", phone).Warn("sms notification failed")
	}
}

func requestNoun(t Type) string {
	if t == TypeReplacement {
		return "replacement"
	}
	return "return"
}
