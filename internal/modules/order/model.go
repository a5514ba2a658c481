package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PrintingStatus tracks where an order is in the print run.
type PrintingStatus string

const (
	PrintingPending    PrintingStatus = "Pending"
	PrintingInProgress PrintingStatus = "In Progress"
	PrintingDone       PrintingStatus = "Done"
)

// DispatchStatus tracks courier handover and delivery.
type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "Pending"
	DispatchDispatched DispatchStatus = "Dispatched"
	DispatchDelivered  DispatchStatus = "Delivered"
)

// ReturnStatus summarizes completed returns against an order.
type ReturnStatus string

const (
	ReturnNone       ReturnStatus = "None"
	ReturnPartial    ReturnStatus = "Partial"
	ReturnFull       ReturnStatus = "Full"
	ReturnProcessing ReturnStatus = "Processing"
)

// Customer is the embedded contact sub-record on an order.
type Customer struct {
	Name            string `json:"name"`
	FatherName      string `json:"father_name,omitempty"`
	College         string `json:"college,omitempty"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	AlternateNumber string `json:"alternate_number,omitempty"`
	PinCode         string `json:"pin_code"`
	Address         string `json:"address"`
	Landmark        string `json:"landmark,omitempty"`
	State           string `json:"state"`
	City            string `json:"city"`
}

// LineItem is one book/quantity pair within an order.
type LineItem struct {
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"order_id"`
	BookID   uuid.UUID `json:"book_id"`
	Quantity int       `json:"quantity"`
}

// Courier holds shipping metadata for an order.
type Courier struct {
	Type       string          `json:"type"`
	TrackingID string          `json:"tracking_id,omitempty"`
	Charges    decimal.Decimal `json:"charges"`
}

// Status is the printing/dispatch status pair.
type Status struct {
	Printing PrintingStatus `json:"printing"`
	Dispatch DispatchStatus `json:"dispatch"`
}

// Order is one customer purchase. Its line items hold the stock the ledger
// has reserved for it; every mutation of the items goes through the stock
// ledger first.
type Order struct {
	ID                 uuid.UUID       `json:"id"`
	Customer           Customer        `json:"customer"`
	Items              []*LineItem     `json:"items"`
	BundleIDs          []uuid.UUID     `json:"bundle_ids,omitempty"`
	KitType            string          `json:"kit_type,omitempty"`
	BatchType          string          `json:"batch_type,omitempty"`
	OrderType          string          `json:"order_type,omitempty"`
	Payment            decimal.Decimal `json:"payment"`
	RemainingPayment   decimal.Decimal `json:"remaining_payment"`
	Remark             string          `json:"remark,omitempty"`
	TransactionID      string          `json:"transaction_id"`
	Courier            Courier         `json:"courier"`
	Status             Status          `json:"status"`
	IsCompleted        bool            `json:"is_completed"`
	ReturnStatus       ReturnStatus    `json:"return_status"`
	HasActiveReturn    bool            `json:"has_active_return"`
	TotalReturnedValue decimal.Decimal `json:"total_returned_value"`
	CreatedBy          uuid.UUID       `json:"created_by"`
	UpdatedBy          *uuid.UUID      `json:"updated_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// QuantityFor returns the ordered quantity of the given book, 0 when the
// book is not part of the order.
func (o *Order) QuantityFor(bookID uuid.UUID) int {
	for _, item := range o.Items {
		if item.BookID == bookID {
			return item.Quantity
		}
	}
	return 0
}
