package stock

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/bookpress/backend/internal/apperr"
)

// Service is the stock ledger: the single source of truth for book
// availability. Order flows call Reserve/Release/Adjust; Restock is the only
// operation that grows totalStock.
type Service interface {
	// CreateRecord provisions a zeroed ledger entry for a newly created book.
	CreateRecord(ctx context.Context, bookID string) (*Stock, error)

	Get(ctx context.Context, bookID string) (*Stock, error)
	List(ctx context.Context) ([]*Stock, error)

	// Reserve allocates qty units of one book to an order.
	Reserve(ctx context.Context, bookID string, qty int) error

	// Release returns qty previously reserved units of one book.
	Release(ctx context.Context, bookID string, qty int) error

	// Adjust applies a multi-book batch of reservation deltas atomically:
	// every delta is validated before any counter moves.
	Adjust(ctx context.Context, deltas []Delta) error

	// Restock adds qty freshly stocked units of one book.
	Restock(ctx context.Context, bookID string, qty int) error

	// RemoveRecord deletes the ledger entry. The caller is responsible for
	// ensuring no order still references the book.
	RemoveRecord(ctx context.Context, bookID string) error
}

type service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateRecord(ctx context.Context, bookID string) (*Stock, error) {
	uid, err := uuid.Parse(bookID)
	if err != nil {
		return nil, apperr.Validation("book_id", "invalid uuid")
	}
	rec := &Stock{ID: uuid.New(), BookID: uid}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) Get(ctx context.Context, bookID string) (*Stock, error) {
	return s.repo.GetByBook(ctx, bookID)
}

func (s *service) List(ctx context.Context) ([]*Stock, error) {
	return s.repo.List(ctx)
}

func (s *service) Reserve(ctx context.Context, bookID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}
	return s.Adjust(ctx, []Delta{{BookID: bookID, Qty: qty}})
}

func (s *service) Release(ctx context.Context, bookID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}
	return s.Adjust(ctx, []Delta{{BookID: bookID, Qty: -qty}})
}

func (s *service) Adjust(ctx context.Context, deltas []Delta) error {
	merged := mergeDeltas(deltas)
	if len(merged) == 0 {
		return nil
	}
	return s.repo.Adjust(ctx, merged)
}

func (s *service) Restock(ctx context.Context, bookID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}
	return s.repo.AddStock(ctx, bookID, qty)
}

func (s *service) RemoveRecord(ctx context.Context, bookID string) error {
	return s.repo.DeleteByBook(ctx, bookID)
}

// mergeDeltas collapses repeated book ids, drops zero deltas, and orders the
// batch by book id so concurrent multi-book adjustments take row locks in a
// stable order.
func mergeDeltas(deltas []Delta) []Delta {
	byBook := make(map[string]int, len(deltas))
	for _, d := range deltas {
		byBook[d.BookID] += d.Qty
	}
	merged := make([]Delta, 0, len(byBook))
	for id, qty := range byBook {
		if qty == 0 {
			continue
		}
		merged = append(merged, Delta{BookID: id, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].BookID < merged[j].BookID })
	return merged
}
