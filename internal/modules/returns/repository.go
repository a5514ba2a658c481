package returns

import (
	"context"

	"github.com/shopspring/decimal"
)

// ListOptions filters and paginates request listings.
type ListOptions struct {
	Page   int
	Limit  int
	Type   Type
	Status RequestStatus
}

// Page is one page of requests plus pagination metadata.
type Page struct {
	Requests      []*Request `json:"requests"`
	CurrentPage   int        `json:"current_page"`
	TotalPages    int        `json:"total_pages"`
	TotalRequests int        `json:"total_requests"`
	Limit         int        `json:"limit"`
}

// StatsBucket aggregates requests sharing a type and status.
type StatsBucket struct {
	Type         Type            `json:"type"`
	Status       RequestStatus   `json:"status"`
	Count        int             `json:"count"`
	TotalValue   decimal.Decimal `json:"total_value"`
	TotalRefunds decimal.Decimal `json:"total_refunds"`
}

// Stats summarises the request backlog.
type Stats struct {
	TotalRequests  int           `json:"total_requests"`
	ActiveRequests int           `json:"active_requests"`
	Breakdown      []StatsBucket `json:"breakdown"`
}

type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, opts ListOptions) (*Page, error)
	Update(ctx context.Context, req *Request) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
}
