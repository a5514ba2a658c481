package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/modules/stock"
)

// Service defines catalog business logic for books and bundles. Creating a
// book provisions its stock ledger record; deleting a book removes it.
type Service interface {
	// Book operations
	CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	GetBookBySKU(ctx context.Context, sku string) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListBooksInBundle(ctx context.Context, bundleID string) ([]*Book, error)
	UpdateBook(ctx context.Context, id string, req UpdateBookRequest) (*Book, error)
	DeleteBook(ctx context.Context, id string) error

	// Bundle operations
	CreateBundle(ctx context.Context, req CreateBundleRequest) (*Bundle, error)
	GetBundle(ctx context.Context, id string) (*Bundle, error)
	GetBundleByName(ctx context.Context, name string) (*Bundle, error)
	ListBundles(ctx context.Context) ([]*Bundle, error)
	UpdateBundle(ctx context.Context, id string, req CreateBundleRequest) (*Bundle, error)
	DeleteBundle(ctx context.Context, id string) error
}

// CreateBookRequest holds the data for creating a book.
type CreateBookRequest struct {
	SKU           string          `json:"sku"`
	ExamName      string          `json:"exam_name"`
	CourseName    string          `json:"course_name"`
	Subject       string          `json:"subject"`
	PrintingPrice decimal.Decimal `json:"printing_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Description   string          `json:"description"`
	BundleID      string          `json:"bundle_id"`
}

// UpdateBookRequest holds administrative edits to a book. Zero-value fields
// are left unchanged.
type UpdateBookRequest struct {
	SKU           string           `json:"sku"`
	ExamName      string           `json:"exam_name"`
	CourseName    string           `json:"course_name"`
	Subject       string           `json:"subject"`
	PrintingPrice *decimal.Decimal `json:"printing_price"`
	SellPrice     *decimal.Decimal `json:"sell_price"`
	Description   string           `json:"description"`
	BundleID      string           `json:"bundle_id"`
}

// CreateBundleRequest holds the data for creating or renaming a bundle.
type CreateBundleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type service struct {
	books   BookRepository
	bundles BundleRepository
	stocks  stock.Service
}

// NewService creates a new catalog service.
func NewService(books BookRepository, bundles BundleRepository, stocks stock.Service) Service {
	return &service{books: books, bundles: bundles, stocks: stocks}
}

func (s *service) CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error) {
	if req.SKU == "" {
		return nil, apperr.Validation("sku", "is required")
	}
	if req.PrintingPrice.IsNegative() || req.SellPrice.IsNegative() {
		return nil, apperr.Validation("price", "must not be negative")
	}
	if existing, err := s.books.GetBySKU(ctx, req.SKU); err == nil && existing != nil {
		return nil, apperr.Conflict("book with SKU %s already exists", req.SKU)
	}
	bundle, err := s.bundles.GetByID(ctx, req.BundleID)
	if err != nil {
		return nil, err
	}

	b := &Book{
		ID:            uuid.New(),
		SKU:           req.SKU,
		ExamName:      req.ExamName,
		CourseName:    req.CourseName,
		Subject:       req.Subject,
		PrintingPrice: req.PrintingPrice,
		SellPrice:     req.SellPrice,
		Description:   req.Description,
		BundleID:      bundle.ID,
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}

	// Stock enters circulation only through restock, so the ledger record
	// starts zeroed and totalStock = currentStock + orderedStock holds from
	// the first write.
	if _, err := s.stocks.CreateRecord(ctx, b.ID.String()); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) GetBook(ctx context.Context, id string) (*Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *service) GetBookBySKU(ctx context.Context, sku string) (*Book, error) {
	return s.books.GetBySKU(ctx, sku)
}

func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.books.List(ctx)
}

func (s *service) ListBooksInBundle(ctx context.Context, bundleID string) ([]*Book, error) {
	return s.books.ListByBundle(ctx, bundleID)
}

func (s *service) UpdateBook(ctx context.Context, id string, req UpdateBookRequest) (*Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SKU != "" {
		b.SKU = req.SKU
	}
	if req.ExamName != "" {
		b.ExamName = req.ExamName
	}
	if req.CourseName != "" {
		b.CourseName = req.CourseName
	}
	if req.Subject != "" {
		b.Subject = req.Subject
	}
	if req.PrintingPrice != nil {
		if req.PrintingPrice.IsNegative() {
			return nil, apperr.Validation("printing_price", "must not be negative")
		}
		b.PrintingPrice = *req.PrintingPrice
	}
	if req.SellPrice != nil {
		if req.SellPrice.IsNegative() {
			return nil, apperr.Validation("sell_price", "must not be negative")
		}
		b.SellPrice = *req.SellPrice
	}
	if req.Description != "" {
		b.Description = req.Description
	}
	if req.BundleID != "" {
		bundle, err := s.bundles.GetByID(ctx, req.BundleID)
		if err != nil {
			return nil, err
		}
		b.BundleID = bundle.ID
	}
	if err := s.books.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) DeleteBook(ctx context.Context, id string) error {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, b.ID.String()); err != nil {
		return err
	}
	return s.stocks.RemoveRecord(ctx, b.ID.String())
}

func (s *service) CreateBundle(ctx context.Context, req CreateBundleRequest) (*Bundle, error) {
	if req.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if existing, err := s.bundles.GetByName(ctx, req.Name); err == nil && existing != nil {
		return nil, apperr.Conflict("bundle %s already exists", req.Name)
	}
	b := &Bundle{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.bundles.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) GetBundle(ctx context.Context, id string) (*Bundle, error) {
	return s.bundles.GetByID(ctx, id)
}

func (s *service) GetBundleByName(ctx context.Context, name string) (*Bundle, error) {
	return s.bundles.GetByName(ctx, name)
}

func (s *service) ListBundles(ctx context.Context) ([]*Bundle, error) {
	return s.bundles.List(ctx)
}

func (s *service) UpdateBundle(ctx context.Context, id string, req CreateBundleRequest) (*Bundle, error) {
	b, err := s.bundles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		b.Name = req.Name
	}
	if req.Description != "" {
		b.Description = req.Description
	}
	if err := s.bundles.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) DeleteBundle(ctx context.Context, id string) error {
	return s.bundles.Delete(ctx, id)
}
