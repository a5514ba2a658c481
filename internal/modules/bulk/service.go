package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/order"
)

// BundleCatalog is the slice of the catalog the bulk importer needs.
type BundleCatalog interface {
	GetBundleByName(ctx context.Context, name string) (*catalog.Bundle, error)
	ListBooksInBundle(ctx context.Context, bundleID string) ([]*catalog.Book, error)
}

// Service turns an uploaded customer sheet into orders.
//
// Rows are processed in file order. A row that fails before any order has
// been created is recorded and skipped. Once the first order has been
// created the batch is committed to: any later failure deletes every order
// the batch created and the whole import is reported as rolled back.
type Service interface {
	Ingest(ctx context.Context, rows []Row, actorID string) (*Result, error)
}

// CreatedRow records one successfully imported row.
type CreatedRow struct {
	Line          int       `json:"line"`
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	CustomerName  string    `json:"customer_name"`
}

// FailedRow records one rejected row and why.
type FailedRow struct {
	Line          int    `json:"line"`
	CustomerName  string `json:"customer_name"`
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

// Result is the outcome of one import.
type Result struct {
	Created    []CreatedRow `json:"created"`
	Failed     []FailedRow  `json:"failed"`
	RolledBack bool         `json:"rolled_back"`
}

type service struct {
	orders   order.Service
	catalog  BundleCatalog
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewService creates a new bulk import service.
func NewService(orders order.Service, cat BundleCatalog, log logrus.FieldLogger) Service {
	return &service{
		orders:   orders,
		catalog:  cat,
		validate: validator.New(),
		log:      log,
	}
}

func (s *service) Ingest(ctx context.Context, rows []Row, actorID string) (*Result, error) {
	result := &Result{}
	for _, row := range rows {
		o, err := s.createOrder(ctx, row, actorID)
		if err == nil {
			result.Created = append(result.Created, CreatedRow{
				Line:          row.Line,
				OrderID:       o.ID,
				TransactionID: o.TransactionID,
				CustomerName:  o.Customer.Name,
			})
			continue
		}

		failed := FailedRow{
			Line:          row.Line,
			CustomerName:  row.Name,
			TransactionID: row.TransactionID,
			Error:         err.Error(),
		}
		if len(result.Created) == 0 {
			result.Failed = append(result.Failed, failed)
			continue
		}

		// Orders already exist for earlier rows; a partial sheet at this
		// point would leave the upload half applied. Undo everything.
		s.rollback(ctx, result.Created)
		result.Failed = append(result.Failed, failed)
		result.Created = nil
		result.RolledBack = true
		return result, fmt.Errorf("line %d (%s): %w", row.Line, row.Name, err)
	}
	return result, nil
}

// createOrder validates one row, expands its bundle names into line items
// and places the order.
func (s *service) createOrder(ctx context.Context, row Row, actorID string) (*order.Order, error) {
	if err := s.validate.Struct(row); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, apperr.Validationf("field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return nil, err
	}

	items, bundleIDs, err := s.expandBundles(ctx, row.BundleNames)
	if err != nil {
		return nil, err
	}
	payment, err := parseAmount(row.Payment, "payment")
	if err != nil {
		return nil, err
	}
	remaining, err := parseAmount(row.RemainingPayment, "remaining_payment")
	if err != nil {
		return nil, err
	}

	return s.orders.Create(ctx, order.CreateOrderRequest{
		Customer: order.Customer{
			Name:            row.Name,
			FatherName:      row.FatherName,
			College:         row.College,
			Email:           row.Email,
			PhoneNumber:     row.PhoneNumber,
			AlternateNumber: row.AlternateNumber,
			PinCode:         row.PinCode,
			Address:         row.Address,
			Landmark:        row.Landmark,
			State:           row.State,
			City:            row.City,
		},
		Items:            items,
		BundleIDs:        bundleIDs,
		KitType:          row.KitType,
		BatchType:        row.BatchType,
		OrderType:        row.OrderType,
		Payment:          payment,
		RemainingPayment: remaining,
		Remark:           row.Remark,
		TransactionID:    row.TransactionID,
		Courier:          order.CourierInput{Type: row.CourierType},
		CreatedBy:        actorID,
	})
}

// expandBundles resolves a comma-separated bundle name list into line items,
// one copy of each book per bundle appearance. A book present in two named
// bundles imports with quantity two.
func (s *service) expandBundles(ctx context.Context, bundleNames string) ([]order.LineItemInput, []string, error) {
	quantities := make(map[string]int)
	var bookOrder []string
	var bundleIDs []string

	for _, raw := range strings.Split(bundleNames, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		bundle, err := s.catalog.GetBundleByName(ctx, name)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, nil, apperr.Validationf("bundle %q not found", name)
			}
			return nil, nil, err
		}
		books, err := s.catalog.ListBooksInBundle(ctx, bundle.ID.String())
		if err != nil {
			return nil, nil, err
		}
		if len(books) == 0 {
			return nil, nil, apperr.Validationf("bundle %q has no books", name)
		}
		bundleIDs = append(bundleIDs, bundle.ID.String())
		for _, book := range books {
			id := book.ID.String()
			if quantities[id] == 0 {
				bookOrder = append(bookOrder, id)
			}
			quantities[id]++
		}
	}
	if len(bundleIDs) == 0 {
		return nil, nil, apperr.Validation("bundle_names", "no bundle names given")
	}

	items := make([]order.LineItemInput, 0, len(bookOrder))
	for _, id := range bookOrder {
		items = append(items, order.LineItemInput{BookID: id, Quantity: quantities[id]})
	}
	return items, bundleIDs, nil
}

// rollback deletes orders created by a failed batch, newest first. Order
// deletion releases the stock the order had reserved.
func (s *service) rollback(ctx context.Context, created []CreatedRow) {
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		if err := s.orders.Delete(ctx, c.OrderID.String()); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id": c.OrderID,
				"line":     c.Line,
			}).Error("bulk rollback failed to delete order")
		}
	}
}

func parseAmount(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperr.Validation(field, fmt.Sprintf("invalid amount %q", value))
	}
	return amount, nil
}
