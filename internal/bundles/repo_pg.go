package bundles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, user_id, strategy, total_count, product_ids, amount, currency, is_free, used_allowance, paid,
       status, contact_name, contact_phone, download_key, page_count, error_code, error_message,
       created_at, updated_at, completed_at
FROM mock_pdf_requests`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Create(ctx context.Context, b Bundle) error {
	ids, err := json.Marshal(b.ProductIDs)
	if err != nil {
		return fmt.Errorf("encode product ids: %w", err)
	}
	const query = `
INSERT INTO mock_pdf_requests (
	id, user_id, strategy, total_count, product_ids, amount, currency, is_free, used_allowance, paid,
	status, contact_name, contact_phone, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`
	_, err = r.DB.ExecContext(ctx, query,
		b.ID,
		b.UserID,
		string(b.Strategy),
		b.RequiredCount,
		string(ids),
		b.Amount,
		b.Currency,
		b.IsFree,
		b.UsedAllowance,
		b.Paid,
		string(b.Status),
		b.ContactName,
		b.ContactPhone,
		b.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Bundle, error) {
	return scanBundle(r.DB.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
}

func (r *PGRepo) GetForUser(ctx context.Context, userID, id string) (Bundle, error) {
	return scanBundle(r.DB.QueryRowContext(ctx, selectColumns+` WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Bundle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, selectColumns+`
WHERE user_id = $1
ORDER BY created_at DESC, id ASC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus applies upd only if the row currently holds the single legal
// predecessor of upd.Status, so concurrent workers cannot move a job backwards.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	prev, ok := predecessor(upd.Status)
	if !ok {
		return ErrInvalidTransition
	}
	const query = `
UPDATE mock_pdf_requests
SET status = $2,
    download_key = COALESCE($3, download_key),
    page_count = COALESCE($4, page_count),
    error_code = COALESCE($5, error_code),
    error_message = COALESCE($6, error_message),
    completed_at = COALESCE($7, completed_at),
    updated_at = now()
WHERE id = $1 AND status = $8`
	res, err := r.DB.ExecContext(ctx, query,
		id,
		string(upd.Status),
		nullString(upd.DownloadKey),
		nullInt(upd.PageCount),
		nullString(upd.ErrorCode),
		nullString(upd.ErrorMessage),
		nullTime(upd.CompletedAt),
		string(prev),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM mock_pdf_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (r *PGRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
UPDATE mock_pdf_requests SET paid = TRUE, updated_at = now() WHERE id = $1 AND paid = FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func predecessor(next mockpdf.JobStatus) (mockpdf.JobStatus, bool) {
	switch next {
	case mockpdf.StatusProcessing:
		return mockpdf.StatusPending, true
	case mockpdf.StatusCompleted, mockpdf.StatusFailed:
		return mockpdf.StatusProcessing, true
	default:
		return "", false
	}
}

func scanBundle(row rowScanner) (Bundle, error) {
	var (
		b            Bundle
		strategy     string
		status       string
		productIDs   []byte
		downloadKey  sql.NullString
		pageCount    sql.NullInt64
		errorCode    sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&strategy,
		&b.RequiredCount,
		&productIDs,
		&b.Amount,
		&b.Currency,
		&b.IsFree,
		&b.UsedAllowance,
		&b.Paid,
		&status,
		&b.ContactName,
		&b.ContactPhone,
		&downloadKey,
		&pageCount,
		&errorCode,
		&errorMessage,
		&b.CreatedAt,
		&b.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bundle{}, ErrNotFound
		}
		return Bundle{}, err
	}
	b.Strategy = mockpdf.Strategy(strategy)
	b.Status = mockpdf.JobStatus(status)
	if len(productIDs) > 0 {
		if err := json.Unmarshal(productIDs, &b.ProductIDs); err != nil {
			return Bundle{}, fmt.Errorf("decode product ids for %s: %w", b.ID, err)
		}
	}
	b.DownloadKey = downloadKey.String
	b.PageCount = int(pageCount.Int64)
	b.ErrorCode = errorCode.String
	b.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
