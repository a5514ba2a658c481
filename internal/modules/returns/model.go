package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type distinguishes plain returns from replacements.
type Type string

const (
	TypeReturn      Type = "Return"
	TypeReplacement Type = "Replacement"
)

// RequestStatus is the lifecycle state of a return/replacement request.
// Requested, Approved and Processing are active; Completed and Rejected are
// terminal.
type RequestStatus string

const (
	StatusRequested  RequestStatus = "Requested"
	StatusApproved   RequestStatus = "Approved"
	StatusProcessing RequestStatus = "Processing"
	StatusCompleted  RequestStatus = "Completed"
	StatusRejected   RequestStatus = "Rejected"
)

// Terminal reports whether the status ends the request lifecycle.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Reason is the mandatory per-item justification.
type Reason string

const (
	ReasonDamaged         Reason = "Damaged"
	ReasonWrongItem       Reason = "Wrong Item"
	ReasonQualityIssue    Reason = "Quality Issue"
	ReasonPrintingError   Reason = "Printing Error"
	ReasonCustomerRequest Reason = "Customer Request"
	ReasonOther           Reason = "Other"
)

func validReason(r Reason) bool {
	switch r {
	case ReasonDamaged, ReasonWrongItem, ReasonQualityIssue,
		ReasonPrintingError, ReasonCustomerRequest, ReasonOther:
		return true
	}
	return false
}

// Item is one affected book within a request. ReplacementBookID and
// ReplacementQuantity are set only on Replacement requests.
type Item struct {
	ID                  uuid.UUID  `json:"id"`
	RequestID           uuid.UUID  `json:"request_id"`
	BookID              uuid.UUID  `json:"book_id"`
	OrderedQuantity     int        `json:"ordered_quantity"`
	AffectedQuantity    int        `json:"affected_quantity"`
	Reason              Reason     `json:"reason"`
	ReplacementBookID   *uuid.UUID `json:"replacement_book_id,omitempty"`
	ReplacementQuantity int        `json:"replacement_quantity,omitempty"`
}

// replacementQty defaults to the affected quantity when the request did not
// name one, matching the financial computation.
func (i *Item) replacementQty() int {
	if i.ReplacementQuantity > 0 {
		return i.ReplacementQuantity
	}
	return i.AffectedQuantity
}

// Financials is the computed money movement of a request. FinalAmount is
// negative for a net refund and positive for a net additional charge.
type Financials struct {
	TotalOrderValue   decimal.Decimal `json:"total_order_value"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	AdditionalCharges decimal.Decimal `json:"additional_charges"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
}

// Resolution records who closed the request and how.
type Resolution struct {
	ProcessedAt   time.Time `json:"processed_at"`
	ProcessedBy   uuid.UUID `json:"processed_by"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// Request is one return or replacement request tied to exactly one order.
type Request struct {
	ID         uuid.UUID     `json:"id"`
	OrderID    uuid.UUID     `json:"order_id"`
	Type       Type          `json:"type"`
	Items      []*Item       `json:"items"`
	Financials Financials    `json:"financials"`
	Status     RequestStatus `json:"status"`
	Resolution *Resolution   `json:"resolution,omitempty"`
	AdminNotes string        `json:"admin_notes,omitempty"`
	CreatedBy  uuid.UUID     `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
