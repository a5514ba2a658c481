package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/bookpress/backend/internal/apperr"
)

// ---- Book ----

type bookPostgres struct{ db *sql.DB }

// NewBookPostgresRepository creates a Postgres-backed book repository.
func NewBookPostgresRepository(db *sql.DB) BookRepository { return &bookPostgres{db: db} }

const bookColumns = `id, sku, exam_name, course_name, subject, printing_price, sell_price, description, bundle_id, created_at, updated_at`

func (r *bookPostgres) Create(ctx context.Context, b *Book) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, sku, exam_name, course_name, subject, printing_price, sell_price, description, bundle_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.SKU, b.ExamName, b.CourseName, b.Subject,
		b.PrintingPrice, b.SellPrice, b.Description, b.BundleID)
	return err
}

func (r *bookPostgres) GetByID(ctx context.Context, id string) (*Book, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("book_id", "invalid uuid")
	}
	return r.scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id=$1`, uid), id)
}

func (r *bookPostgres) GetBySKU(ctx context.Context, sku string) (*Book, error) {
	return r.scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE sku=$1`, sku), sku)
}

func (r *bookPostgres) List(ctx context.Context) ([]*Book, error) {
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY exam_name ASC, course_name ASC`)
}

func (r *bookPostgres) ListByBundle(ctx context.Context, bundleID string) ([]*Book, error) {
	uid, err := uuid.Parse(bundleID)
	if err != nil {
		return nil, apperr.Validation("bundle_id", "invalid uuid")
	}
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE bundle_id=$1 ORDER BY sku ASC`, uid)
}

func (r *bookPostgres) Update(ctx context.Context, b *Book) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET sku=$1, exam_name=$2, course_name=$3, subject=$4,
		    printing_price=$5, sell_price=$6, description=$7, bundle_id=$8,
		    updated_at=NOW()
		WHERE id=$9`,
		b.SKU, b.ExamName, b.CourseName, b.Subject,
		b.PrintingPrice, b.SellPrice, b.Description, b.BundleID, b.ID)
	return err
}

func (r *bookPostgres) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("book_id", "invalid uuid")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id=$1`, uid)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("book", id)
	}
	return nil
}

func (r *bookPostgres) scanBook(row *sql.Row, ref string) (*Book, error) {
	b := &Book{}
	err := row.Scan(&b.ID, &b.SKU, &b.ExamName, &b.CourseName, &b.Subject,
		&b.PrintingPrice, &b.SellPrice, &b.Description, &b.BundleID,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("book", ref)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookPostgres) queryBooks(ctx context.Context, query string, args ...interface{}) ([]*Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []*Book
	for rows.Next() {
		b := &Book{}
		if err := rows.Scan(&b.ID, &b.SKU, &b.ExamName, &b.CourseName, &b.Subject,
			&b.PrintingPrice, &b.SellPrice, &b.Description, &b.BundleID,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ---- Bundle ----

type bundlePostgres struct{ db *sql.DB }

// NewBundlePostgresRepository creates a Postgres-backed bundle repository.
func NewBundlePostgresRepository(db *sql.DB) BundleRepository { return &bundlePostgres{db: db} }

func (r *bundlePostgres) Create(ctx context.Context, b *Bundle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bundles (id, name, description) VALUES ($1,$2,$3)`,
		b.ID, b.Name, b.Description)
	return err
}

func (r *bundlePostgres) GetByID(ctx context.Context, id string) (*Bundle, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("bundle_id", "invalid uuid")
	}
	return r.scanBundle(r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM bundles WHERE id=$1`, uid), id)
}

func (r *bundlePostgres) GetByName(ctx context.Context, name string) (*Bundle, error) {
	return r.scanBundle(r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM bundles WHERE name=$1`, name), name)
}

func (r *bundlePostgres) List(ctx context.Context) ([]*Bundle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM bundles ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bundles []*Bundle
	for rows.Next() {
		b := &Bundle{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

func (r *bundlePostgres) Update(ctx context.Context, b *Bundle) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bundles SET name=$1, description=$2, updated_at=NOW() WHERE id=$3`,
		b.Name, b.Description, b.ID)
	return err
}

func (r *bundlePostgres) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("bundle_id", "invalid uuid")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM bundles WHERE id=$1`, uid)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("bundle", id)
	}
	return nil
}

func (r *bundlePostgres) scanBundle(row *sql.Row, ref string) (*Bundle, error) {
	b := &Bundle{}
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("bundle", ref)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
