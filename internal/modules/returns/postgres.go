package returns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookpress/backend/internal/apperr"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a Postgres-backed return-request repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const requestColumns = `id, order_id, type, status,
	total_order_value, refund_amount, additional_charges, final_amount,
	processed_at, processed_by, resolution_transaction_id, resolution_notes,
	admin_notes, created_by, created_at, updated_at`

// Create inserts the request and all its items inside a single transaction.
func (r *postgresRepo) Create(ctx context.Context, req *Request) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO return_requests
		  (id, order_id, type, status,
		   total_order_value, refund_amount, additional_charges, final_amount,
		   admin_notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		req.ID, req.OrderID, req.Type, req.Status,
		req.Financials.TotalOrderValue, req.Financials.RefundAmount,
		req.Financials.AdditionalCharges, req.Financials.FinalAmount,
		req.AdminNotes, req.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert return request: %w", err)
	}

	if err := insertRequestItems(ctx, tx, req); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Request, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("request_id", "invalid uuid")
	}
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM return_requests WHERE id=$1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("return request", id)
	}
	if err != nil {
		return nil, err
	}
	req.Items, err = r.listItems(ctx, req.ID)
	return req, err
}

func (r *postgresRepo) List(ctx context.Context, opts ListOptions) (*Page, error) {
	where := `WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Type != "" {
		where += ` AND type = ` + arg(string(opts.Type))
	}
	if opts.Status != "" {
		where += ` AND status = ` + arg(string(opts.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM return_requests `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM return_requests %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		requestColumns, where, arg(opts.Limit), arg((opts.Page-1)*opts.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, req := range requests {
		if req.Items, err = r.listItems(ctx, req.ID); err != nil {
			return nil, err
		}
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	return &Page{
		Requests:      requests,
		CurrentPage:   opts.Page,
		TotalPages:    totalPages,
		TotalRequests: total,
		Limit:         opts.Limit,
	}, nil
}

// Update overwrites the request row; items never change after creation.
func (r *postgresRepo) Update(ctx context.Context, req *Request) error {
	var processedAt sql.NullTime
	var processedBy, txnID, notes sql.NullString
	if req.Resolution != nil {
		processedAt = sql.NullTime{Time: req.Resolution.ProcessedAt, Valid: true}
		processedBy = sql.NullString{String: req.Resolution.ProcessedBy.String(), Valid: true}
		txnID = sql.NullString{String: req.Resolution.TransactionID, Valid: true}
		notes = sql.NullString{String: req.Resolution.Notes, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE return_requests SET status=$1,
		  processed_at=$2, processed_by=$3,
		  resolution_transaction_id=$4, resolution_notes=$5,
		  admin_notes=$6, updated_at=NOW()
		WHERE id=$7`,
		req.Status, processedAt, processedBy, txnID, notes, req.AdminNotes, req.ID)
	if err != nil {
		return fmt.Errorf("update return request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("return request", req.ID.String())
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("request_id", "invalid uuid")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM return_request_items WHERE request_id=$1`, uid); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM return_requests WHERE id=$1`, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("return request", id)
	}
	return tx.Commit()
}

func (r *postgresRepo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status NOT IN ('Completed','Rejected'))
		FROM return_requests`).Scan(&stats.TotalRequests, &stats.ActiveRequests)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, status, COUNT(*),
		       COALESCE(SUM(total_order_value), 0),
		       COALESCE(SUM(refund_amount), 0)
		FROM return_requests
		GROUP BY type, status
		ORDER BY type, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b StatsBucket
		if err := rows.Scan(&b.Type, &b.Status, &b.Count, &b.TotalValue, &b.TotalRefunds); err != nil {
			return nil, err
		}
		stats.Breakdown = append(stats.Breakdown, b)
	}
	return stats, rows.Err()
}

func scanRequest(row interface{ Scan(dest ...interface{}) error }) (*Request, error) {
	req := &Request{}
	var processedAt sql.NullTime
	var processedBy, txnID, notes sql.NullString
	err := row.Scan(
		&req.ID, &req.OrderID, &req.Type, &req.Status,
		&req.Financials.TotalOrderValue, &req.Financials.RefundAmount,
		&req.Financials.AdditionalCharges, &req.Financials.FinalAmount,
		&processedAt, &processedBy, &txnID, &notes,
		&req.AdminNotes, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		res := &Resolution{
			ProcessedAt:   processedAt.Time.In(time.UTC),
			TransactionID: txnID.String,
			Notes:         notes.String,
		}
		if uid, err := uuid.Parse(processedBy.String); err == nil {
			res.ProcessedBy = uid
		}
		req.Resolution = res
	}
	return req, nil
}

func (r *postgresRepo) listItems(ctx context.Context, requestID uuid.UUID) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, book_id, ordered_quantity, affected_quantity,
		       reason, replacement_book_id, replacement_quantity
		FROM return_request_items WHERE request_id=$1 ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item := &Item{}
		var replBook sql.NullString
		err := rows.Scan(&item.ID, &item.RequestID, &item.BookID,
			&item.OrderedQuantity, &item.AffectedQuantity,
			&item.Reason, &replBook, &item.ReplacementQuantity)
		if err != nil {
			return nil, err
		}
		if replBook.Valid {
			if uid, err := uuid.Parse(replBook.String); err == nil {
				item.ReplacementBookID = &uid
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertRequestItems(ctx context.Context, tx *sql.Tx, req *Request) error {
	for _, item := range req.Items {
		var replBook interface{}
		if item.ReplacementBookID != nil {
			replBook = item.ReplacementBookID.String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO return_request_items
			  (id, request_id, book_id, ordered_quantity, affected_quantity,
			   reason, replacement_book_id, replacement_quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, req.ID, item.BookID, item.OrderedQuantity,
			item.AffectedQuantity, item.Reason, replBook, item.ReplacementQuantity)
		if err != nil {
			return fmt.Errorf("insert return request item: %w", err)
		}
	}
	return nil
}
