package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is a printable title identified by a unique SKU. Every book belongs
// to exactly one bundle.
type Book struct {
	ID            uuid.UUID       `json:"id"`
	SKU           string          `json:"sku"`
	ExamName      string          `json:"exam_name"`
	CourseName    string          `json:"course_name"`
	Subject       string          `json:"subject"`
	PrintingPrice decimal.Decimal `json:"printing_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Description   string          `json:"description,omitempty"`
	BundleID      uuid.UUID       `json:"bundle_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Bundle is a named grouping of books, used for catalog organization and
// for expanding bulk-order rows into line items.
type Bundle struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
