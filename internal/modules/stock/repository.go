package stock

import "context"

// Repository defines stock counter storage. Adjust is the only multi-record
// write and must be all-or-nothing: either every delta applies or the
// counters are left exactly as they were.
type Repository interface {
	Create(ctx context.Context, s *Stock) error
	GetByBook(ctx context.Context, bookID string) (*Stock, error)
	List(ctx context.Context) ([]*Stock, error)

	// Adjust applies reservation deltas atomically, refusing any batch that
	// would drive a currentStock or orderedStock counter negative.
	Adjust(ctx context.Context, deltas []Delta) error

	// AddStock grows totalStock and currentStock by qty (restock).
	AddStock(ctx context.Context, bookID string, qty int) error

	DeleteByBook(ctx context.Context, bookID string) error
}
