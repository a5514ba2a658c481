package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bookpress/backend/internal/apperr"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a Postgres-backed order repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const orderColumns = `id, customer_name, father_name, college, email, phone_number,
	alternate_number, pin_code, address, landmark, state, city,
	bundle_ids, kit_type, batch_type, order_type,
	payment, remaining_payment, remark, transaction_id,
	courier_type, courier_tracking_id, courier_charges,
	printing_status, dispatch_status, is_completed,
	return_status, has_active_return, total_returned_value,
	created_by, updated_by, created_at, updated_at`

// Create inserts the order and all its items inside a single transaction.
func (r *postgresRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, customer_name, father_name, college, email, phone_number,
		   alternate_number, pin_code, address, landmark, state, city,
		   bundle_ids, kit_type, batch_type, order_type,
		   payment, remaining_payment, remark, transaction_id,
		   courier_type, courier_tracking_id, courier_charges,
		   printing_status, dispatch_status, is_completed,
		   return_status, has_active_return, total_returned_value, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
		        $17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`,
		o.ID, o.Customer.Name, o.Customer.FatherName, o.Customer.College,
		o.Customer.Email, o.Customer.PhoneNumber, o.Customer.AlternateNumber,
		o.Customer.PinCode, o.Customer.Address, o.Customer.Landmark,
		o.Customer.State, o.Customer.City,
		pq.Array(uuidStrings(o.BundleIDs)), o.KitType, o.BatchType, o.OrderType,
		o.Payment, o.RemainingPayment, o.Remark, o.TransactionID,
		o.Courier.Type, o.Courier.TrackingID, o.Courier.Charges,
		o.Status.Printing, o.Status.Dispatch, o.IsCompleted,
		o.ReturnStatus, o.HasActiveReturn, o.TotalReturnedValue, o.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := insertItems(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("order_id", "invalid uuid")
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.listItems(ctx, o.ID)
	return o, err
}

func (r *postgresRepo) List(ctx context.Context, opts ListOptions) (*Page, error) {
	where := `WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Search != "" {
		p := arg("%" + opts.Search + "%")
		where += fmt.Sprintf(` AND (customer_name ILIKE %s OR phone_number ILIKE %s OR email ILIKE %s OR transaction_id ILIKE %s)`,
			p, p, p, p)
	}
	if opts.IsCompleted != nil {
		where += ` AND is_completed = ` + arg(*opts.IsCompleted)
	}
	if opts.PrintingStatus != "" {
		where += ` AND printing_status = ` + arg(string(opts.PrintingStatus))
	}
	if opts.DispatchStatus != "" {
		where += ` AND dispatch_status = ` + arg(string(opts.DispatchStatus))
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	sortCol := "created_at"
	switch opts.SortBy {
	case "updated_at", "customer_name":
		sortCol = opts.SortBy
	}
	dir := "ASC"
	if opts.SortDesc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		orderColumns, where, sortCol, dir,
		arg(opts.Limit), arg((opts.Page-1)*opts.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.Items, err = r.listItems(ctx, o.ID); err != nil {
			return nil, err
		}
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	return &Page{
		Orders:      orders,
		CurrentPage: opts.Page,
		TotalPages:  totalPages,
		TotalOrders: total,
		Limit:       opts.Limit,
	}, nil
}

// Update overwrites the order row and replaces its items in one transaction.
func (r *postgresRepo) Update(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
		  customer_name=$1, father_name=$2, college=$3, email=$4, phone_number=$5,
		  alternate_number=$6, pin_code=$7, address=$8, landmark=$9, state=$10, city=$11,
		  bundle_ids=$12, kit_type=$13, batch_type=$14, order_type=$15,
		  payment=$16, remaining_payment=$17, remark=$18, transaction_id=$19,
		  courier_type=$20, courier_tracking_id=$21, courier_charges=$22,
		  printing_status=$23, dispatch_status=$24, is_completed=$25,
		  updated_by=$26, updated_at=NOW()
		WHERE id=$27`,
		o.Customer.Name, o.Customer.FatherName, o.Customer.College,
		o.Customer.Email, o.Customer.PhoneNumber, o.Customer.AlternateNumber,
		o.Customer.PinCode, o.Customer.Address, o.Customer.Landmark,
		o.Customer.State, o.Customer.City,
		pq.Array(uuidStrings(o.BundleIDs)), o.KitType, o.BatchType, o.OrderType,
		o.Payment, o.RemainingPayment, o.Remark, o.TransactionID,
		o.Courier.Type, o.Courier.TrackingID, o.Courier.Charges,
		o.Status.Printing, o.Status.Dispatch, o.IsCompleted,
		o.UpdatedBy, o.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", o.ID.String())
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id=$1`, o.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, o *Order) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET printing_status=$1, dispatch_status=$2,
		  courier_tracking_id=$3, updated_by=$4, updated_at=NOW()
		WHERE id=$5`,
		o.Status.Printing, o.Status.Dispatch, o.Courier.TrackingID, o.UpdatedBy, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", o.ID.String())
	}
	return nil
}

func (r *postgresRepo) UpdateReturnState(ctx context.Context, orderID string, state ReturnState) error {
	uid, err := uuid.Parse(orderID)
	if err != nil {
		return apperr.Validation("order_id", "invalid uuid")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET return_status=$1, has_active_return=$2,
		  total_returned_value=$3, updated_at=NOW()
		WHERE id=$4`,
		state.ReturnStatus, state.HasActiveReturn, state.TotalReturnedValue, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", orderID)
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("order_id", "invalid uuid")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id=$1`, uid); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id=$1`, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", id)
	}
	return tx.Commit()
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var bundleIDs []string
	var updatedBy sql.NullString
	err := row.Scan(
		&o.ID, &o.Customer.Name, &o.Customer.FatherName, &o.Customer.College,
		&o.Customer.Email, &o.Customer.PhoneNumber, &o.Customer.AlternateNumber,
		&o.Customer.PinCode, &o.Customer.Address, &o.Customer.Landmark,
		&o.Customer.State, &o.Customer.City,
		pq.Array(&bundleIDs), &o.KitType, &o.BatchType, &o.OrderType,
		&o.Payment, &o.RemainingPayment, &o.Remark, &o.TransactionID,
		&o.Courier.Type, &o.Courier.TrackingID, &o.Courier.Charges,
		&o.Status.Printing, &o.Status.Dispatch, &o.IsCompleted,
		&o.ReturnStatus, &o.HasActiveReturn, &o.TotalReturnedValue,
		&o.CreatedBy, &updatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, id := range bundleIDs {
		uid, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		o.BundleIDs = append(o.BundleIDs, uid)
	}
	if updatedBy.Valid {
		uid, err := uuid.Parse(updatedBy.String)
		if err == nil {
			o.UpdatedBy = &uid
		}
	}
	return o, nil
}

func (r *postgresRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]*LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, book_id, quantity
		FROM order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LineItem
	for rows.Next() {
		item := &LineItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, o *Order) error {
	for _, item := range o.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, book_id, quantity)
			VALUES ($1,$2,$3,$4)`,
			item.ID, o.ID, item.BookID, item.Quantity)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
