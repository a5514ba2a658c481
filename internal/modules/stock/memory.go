package stock

import (
	"context"
	"sync"
	"time"

	"github.com/bookpress/backend/internal/apperr"
)

// memoryRepo is a mutex-guarded in-memory repository used by unit tests and
// local development. The mutex doubles as the per-book serialization point:
// Adjust validates every delta against a consistent snapshot before applying
// any of them.
type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*Stock // keyed by book id
}

// NewMemoryRepository creates an empty in-memory stock repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{records: make(map[string]*Stock)}
}

func (r *memoryRepo) Create(ctx context.Context, s *Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.BookID.String()
	if _, exists := r.records[key]; exists {
		return apperr.Conflict("stock record already exists for book %s", key)
	}
	cp := *s
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.records[key] = &cp
	return nil
}

func (r *memoryRepo) GetByBook(ctx context.Context, bookID string) (*Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[bookID]
	if !ok {
		return nil, apperr.NotFound("stock record for book", bookID)
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]*Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stock, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepo) Adjust(ctx context.Context, deltas []Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Phase 1: validate every delta against the current counters.
	for _, d := range deltas {
		rec, ok := r.records[d.BookID]
		if !ok {
			return apperr.NotFound("stock record for book", d.BookID)
		}
		if rec.CurrentStock-d.Qty < 0 {
			return &apperr.InsufficientStockError{
				BookID:    d.BookID,
				Available: rec.CurrentStock,
				Requested: d.Qty,
			}
		}
		if rec.OrderedStock+d.Qty < 0 {
			return apperr.Conflict("release of %d exceeds ordered stock (%d) for book %s",
				-d.Qty, rec.OrderedStock, d.BookID)
		}
	}

	// Phase 2: apply.
	now := time.Now()
	for _, d := range deltas {
		rec := r.records[d.BookID]
		rec.OrderedStock += d.Qty
		rec.CurrentStock -= d.Qty
		rec.UpdatedAt = now
	}
	return nil
}

func (r *memoryRepo) AddStock(ctx context.Context, bookID string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[bookID]
	if !ok {
		return apperr.NotFound("stock record for book", bookID)
	}
	rec.TotalStock += qty
	rec.CurrentStock += qty
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) DeleteByBook(ctx context.Context, bookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[bookID]; !ok {
		return apperr.NotFound("stock record for book", bookID)
	}
	delete(r.records, bookID)
	return nil
}
