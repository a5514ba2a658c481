package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookpress/backend/internal/apperr"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a Postgres-backed stock repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, s *Stock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stocks (id, book_id, total_stock, ordered_stock, current_stock)
		VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.BookID, s.TotalStock, s.OrderedStock, s.CurrentStock)
	return err
}

func (r *postgresRepo) GetByBook(ctx context.Context, bookID string) (*Stock, error) {
	uid, err := uuid.Parse(bookID)
	if err != nil {
		return nil, apperr.Validation("book_id", "invalid uuid")
	}
	s := &Stock{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, book_id, total_stock, ordered_stock, current_stock, created_at, updated_at
		FROM stocks WHERE book_id=$1`, uid).
		Scan(&s.ID, &s.BookID, &s.TotalStock, &s.OrderedStock, &s.CurrentStock,
			&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("stock record for book", bookID)
	}
	return s, err
}

func (r *postgresRepo) List(ctx context.Context) ([]*Stock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, book_id, total_stock, ordered_stock, current_stock, created_at, updated_at
		FROM stocks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*Stock
	for rows.Next() {
		s := &Stock{}
		if err := rows.Scan(&s.ID, &s.BookID, &s.TotalStock, &s.OrderedStock,
			&s.CurrentStock, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, s)
	}
	return records, rows.Err()
}

// Adjust applies every delta inside one transaction. Each update is guarded
// so a counter can never go negative; a guard miss rolls the whole batch
// back and surfaces a typed error.
func (r *postgresRepo) Adjust(ctx context.Context, deltas []Delta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range deltas {
		uid, err := uuid.Parse(d.BookID)
		if err != nil {
			return apperr.Validation("book_id", "invalid uuid")
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE stocks
			SET ordered_stock = ordered_stock + $1,
			    current_stock = current_stock - $1,
			    updated_at = NOW()
			WHERE book_id = $2
			  AND current_stock - $1 >= 0
			  AND ordered_stock + $1 >= 0`,
			d.Qty, uid)
		if err != nil {
			return fmt.Errorf("adjust stock for book %s: %w", d.BookID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return r.adjustFailure(ctx, tx, d)
		}
	}
	return tx.Commit()
}

// adjustFailure distinguishes a missing record from a guard miss so callers
// get an actionable error.
func (r *postgresRepo) adjustFailure(ctx context.Context, tx *sql.Tx, d Delta) error {
	var current, ordered int
	err := tx.QueryRowContext(ctx,
		`SELECT current_stock, ordered_stock FROM stocks WHERE book_id=$1`,
		uuid.MustParse(d.BookID)).Scan(&current, &ordered)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("stock record for book", d.BookID)
	}
	if err != nil {
		return err
	}
	if d.Qty > 0 {
		return &apperr.InsufficientStockError{
			BookID:    d.BookID,
			Available: current,
			Requested: d.Qty,
		}
	}
	return apperr.Conflict("release of %d exceeds ordered stock (%d) for book %s",
		-d.Qty, ordered, d.BookID)
}

func (r *postgresRepo) AddStock(ctx context.Context, bookID string, qty int) error {
	uid, err := uuid.Parse(bookID)
	if err != nil {
		return apperr.Validation("book_id", "invalid uuid")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE stocks
		SET total_stock = total_stock + $1,
		    current_stock = current_stock + $1,
		    updated_at = NOW()
		WHERE book_id = $2`, qty, uid)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("stock record for book", bookID)
	}
	return nil
}

func (r *postgresRepo) DeleteByBook(ctx context.Context, bookID string) error {
	uid, err := uuid.Parse(bookID)
	if err != nil {
		return apperr.Validation("book_id", "invalid uuid")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM stocks WHERE book_id=$1`, uid)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("stock record for book", bookID)
	}
	return nil
}
