package bulk

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/bookpress/backend/internal/apperr"
)

// Row is one customer row of an uploaded sheet. Line is the 1-based line
// number in the source file, kept for error reporting.
type Row struct {
	Line             int    `json:"line"`
	Name             string `json:"name" validate:"required"`
	FatherName       string `json:"father_name"`
	College          string `json:"college"`
	Email            string `json:"email" validate:"required,email"`
	PhoneNumber      string `json:"phone_number" validate:"required,min=10"`
	AlternateNumber  string `json:"alternate_number"`
	PinCode          string `json:"pin_code" validate:"required"`
	Address          string `json:"address" validate:"required"`
	Landmark         string `json:"landmark"`
	State            string `json:"state" validate:"required"`
	City             string `json:"city" validate:"required"`
	TransactionID    string `json:"transaction_id" validate:"required"`
	BundleNames      string `json:"bundle_names" validate:"required"`
	Payment          string `json:"payment"`
	RemainingPayment string `json:"remaining_payment"`
	Remark           string `json:"remark"`
	CourierType      string `json:"courier_type"`
	KitType          string `json:"kit_type"`
	BatchType        string `json:"batch_type"`
	OrderType        string `json:"order_type"`
}

// columnSetters maps normalized header names to row field setters. Headers
// are matched case-insensitively with spaces and underscores stripped, so
// "Phone Number", "phoneNumber" and "phone_number" all land on the same
// field.
var columnSetters = map[string]func(*Row, string){
	"name":             func(r *Row, v string) { r.Name = v },
	"fathername":       func(r *Row, v string) { r.FatherName = v },
	"college":          func(r *Row, v string) { r.College = v },
	"email":            func(r *Row, v string) { r.Email = v },
	"phonenumber":      func(r *Row, v string) { r.PhoneNumber = v },
	"alternatenumber":  func(r *Row, v string) { r.AlternateNumber = v },
	"pincode":          func(r *Row, v string) { r.PinCode = v },
	"address":          func(r *Row, v string) { r.Address = v },
	"landmark":         func(r *Row, v string) { r.Landmark = v },
	"state":            func(r *Row, v string) { r.State = v },
	"city":             func(r *Row, v string) { r.City = v },
	"transactionid":    func(r *Row, v string) { r.TransactionID = v },
	"bundlenames":      func(r *Row, v string) { r.BundleNames = v },
	"bundles":          func(r *Row, v string) { r.BundleNames = v },
	"payment":          func(r *Row, v string) { r.Payment = v },
	"remainingpayment": func(r *Row, v string) { r.RemainingPayment = v },
	"remark":           func(r *Row, v string) { r.Remark = v },
	"couriertype":      func(r *Row, v string) { r.CourierType = v },
	"kittype":          func(r *Row, v string) { r.KitType = v },
	"batchtype":        func(r *Row, v string) { r.BatchType = v },
	"ordertype":        func(r *Row, v string) { r.OrderType = v },
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "_", "")
	return h
}

// ParseCSV reads an uploaded sheet into rows. The first record is the
// header; unknown columns are ignored so sheets with extra bookkeeping
// columns still import.
func ParseCSV(src io.Reader) ([]Row, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperr.Validation("file", "sheet is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	setters := make([]func(*Row, string), len(header))
	known := 0
	for i, col := range header {
		if set, ok := columnSetters[normalizeHeader(col)]; ok {
			setters[i] = set
			known++
		}
	}
	if known == 0 {
		return nil, apperr.Validation("file", "no recognized columns in header row")
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := Row{Line: line}
		for i, value := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(value))
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file", "sheet contains no data rows")
	}
	return rows, nil
}
