package stock

import (
	"time"

	"github.com/google/uuid"
)

// Stock holds the per-book counters. The ledger keeps
// totalStock = currentStock + orderedStock at all times: reservations move
// units between currentStock and orderedStock, restocks grow totalStock and
// currentStock together.
type Stock struct {
	ID           uuid.UUID `json:"id"`
	BookID       uuid.UUID `json:"book_id"`
	TotalStock   int       `json:"total_stock"`
	OrderedStock int       `json:"ordered_stock"`
	CurrentStock int       `json:"current_stock"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Delta is one book's share of a multi-book adjustment. Positive Qty
// reserves (currentStock -= Qty, orderedStock += Qty); negative Qty
// releases the same amount back.
type Delta struct {
	BookID string
	Qty    int
}
