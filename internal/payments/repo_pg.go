package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectOrder = `
SELECT order_id, request_id, user_id, provider, amount, currency, status, payment_id, signature, created_at, captured_at
FROM mock_pdf_payment_orders`

func (r *PGRepo) Create(ctx context.Context, o Order) error {
	const query = `
INSERT INTO mock_pdf_payment_orders (order_id, request_id, user_id, provider, amount, currency, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (request_id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query, o.OrderID, o.JobID, o.UserID, o.Provider, o.Amount, o.Currency, o.Status, o.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateOrder
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, orderID string) (Order, error) {
	return scanOrder(r.DB.QueryRowContext(ctx, selectOrder+` WHERE order_id = $1`, orderID))
}

func (r *PGRepo) GetByJob(ctx context.Context, jobID string) (Order, error) {
	return scanOrder(r.DB.QueryRowContext(ctx, selectOrder+` WHERE request_id = $1`, jobID))
}

// MarkCaptured only updates rows still in created, so a second capture reads
// back the first one's payment id.
func (r *PGRepo) MarkCaptured(ctx context.Context, orderID, paymentID, signature string, at time.Time) (Order, error) {
	const query = `
UPDATE mock_pdf_payment_orders
SET status = $2, payment_id = $3, signature = $4, captured_at = $5
WHERE order_id = $1 AND status = $6`
	if _, err := r.DB.ExecContext(ctx, query, orderID, StatusCaptured, paymentID, signature, at, StatusCreated); err != nil {
		return Order{}, err
	}
	return r.GetByID(ctx, orderID)
}

func scanOrder(row *sql.Row) (Order, error) {
	var (
		o          Order
		paymentID  sql.NullString
		signature  sql.NullString
		capturedAt sql.NullTime
	)
	err := row.Scan(
		&o.OrderID,
		&o.JobID,
		&o.UserID,
		&o.Provider,
		&o.Amount,
		&o.Currency,
		&o.Status,
		&paymentID,
		&signature,
		&o.CreatedAt,
		&capturedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.PaymentID = paymentID.String
	o.Signature = signature.String
	if capturedAt.Valid {
		t := capturedAt.Time
		o.CapturedAt = &t
	}
	return o, nil
}
