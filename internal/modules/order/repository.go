package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// ListOptions filters and paginates order listings.
type ListOptions struct {
	Page           int
	Limit          int
	Search         string // matches customer name, phone, email, transaction id
	SortBy         string
	SortDesc       bool
	IsCompleted    *bool
	PrintingStatus PrintingStatus
	DispatchStatus DispatchStatus
}

// Page is one page of orders plus pagination metadata.
type Page struct {
	Orders      []*Order `json:"orders"`
	CurrentPage int      `json:"current_page"`
	TotalPages  int      `json:"total_pages"`
	TotalOrders int      `json:"total_orders"`
	Limit       int      `json:"limit"`
}

// ReturnState is the slice of an order the return processor owns.
type ReturnState struct {
	ReturnStatus       ReturnStatus
	HasActiveReturn    bool
	TotalReturnedValue decimal.Decimal
}

// Repository defines order data storage.
type Repository interface {
	// Create persists a new order and its items atomically.
	Create(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, id string) (*Order, error)

	List(ctx context.Context, opts ListOptions) (*Page, error)

	// Update overwrites the order document, replacing its items.
	Update(ctx context.Context, o *Order) error

	// UpdateStatus writes only the status pair, courier tracking id,
	// and audit field.
	UpdateStatus(ctx context.Context, o *Order) error

	// UpdateReturnState writes only the return-tracking fields.
	UpdateReturnState(ctx context.Context, orderID string, state ReturnState) error

	Delete(ctx context.Context, id string) error
}
