package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/db"
)

type pgStore struct {
	DB     *sql.DB
	policy Policy
	now    func() time.Time
}

// NewPGStore constructs a Postgres-backed entitlement store.
func NewPGStore(database *sql.DB, policy Policy) Store {
	return &pgStore{DB: database, policy: policy.normalized(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Record, error) {
	return s.inTx(ctx, userID, nil)
}

func (s *pgStore) ConsumeFree(ctx context.Context, userID string) (Record, error) {
	return s.inTx(ctx, userID, func(tx *sql.Tx, r *Record) error {
		if r.FreeUsed {
			return ErrFreeBundleUsed
		}
		now := s.now()
		r.FreeUsed = true
		r.FreeUsedAt = &now
		_, err := tx.ExecContext(ctx, `
UPDATE mock_pdf_entitlements SET free_used = TRUE, free_used_at = $1, updated_at = $1 WHERE user_id = $2`, now, userID)
		return err
	})
}

func (s *pgStore) ConsumeAllowance(ctx context.Context, userID string) (Record, error) {
	return s.inTx(ctx, userID, func(tx *sql.Tx, r *Record) error {
		if r.AllowanceRemaining() == 0 {
			return ErrAllowanceExhausted
		}
		r.AllowanceUsed++
		_, err := tx.ExecContext(ctx, `
UPDATE mock_pdf_entitlements SET allowance_used = $1, updated_at = $2 WHERE user_id = $3`, r.AllowanceUsed, s.now(), userID)
		return err
	})
}

func (s *pgStore) ReleaseFree(ctx context.Context, userID string) (Record, error) {
	return s.inTx(ctx, userID, func(tx *sql.Tx, r *Record) error {
		if !r.FreeUsed {
			return nil
		}
		r.FreeUsed = false
		r.FreeUsedAt = nil
		_, err := tx.ExecContext(ctx, `
UPDATE mock_pdf_entitlements SET free_used = FALSE, free_used_at = NULL, updated_at = $1 WHERE user_id = $2`, s.now(), userID)
		return err
	})
}

// ReleaseAllowance only affects the current period; a unit used before a
// rollover is already gone.
func (s *pgStore) ReleaseAllowance(ctx context.Context, userID string) (Record, error) {
	return s.inTx(ctx, userID, func(tx *sql.Tx, r *Record) error {
		if r.AllowanceUsed == 0 {
			return nil
		}
		r.AllowanceUsed--
		_, err := tx.ExecContext(ctx, `
UPDATE mock_pdf_entitlements SET allowance_used = $1, updated_at = $2 WHERE user_id = $3`, r.AllowanceUsed, s.now(), userID)
		return err
	})
}

func (s *pgStore) Reset(ctx context.Context, userID string) (Record, error) {
	now := s.now()
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO mock_pdf_entitlements (user_id, free_used, free_used_at, allowance_used, period_start, updated_at)
VALUES ($1, FALSE, NULL, 0, $2, $2)
ON CONFLICT (user_id) DO UPDATE SET free_used = FALSE, free_used_at = NULL, allowance_used = 0,
    period_start = EXCLUDED.period_start, updated_at = EXCLUDED.updated_at`, userID, now); err != nil {
		return Record{}, err
	}
	return Record{
		UserID:         userID,
		AllowanceLimit: s.policy.AllowanceLimit,
		PeriodStart:    now,
		PeriodEnd:      now.Add(s.policy.Period),
	}, nil
}

// inTx locks the user's row, rolls the period forward and applies mutate.
// A mutate error rolls everything back; the record is still returned.
func (s *pgStore) inTx(ctx context.Context, userID string, mutate func(*sql.Tx, *Record) error) (Record, error) {
	var rec Record
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if rec, err = s.lockAndEnsure(ctx, tx, userID); err != nil {
			rec = Record{}
			return err
		}
		if mutate != nil {
			return mutate(tx, &rec)
		}
		return nil
	})
	return rec, err
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string) (Record, error) {
	r := Record{UserID: userID, AllowanceLimit: s.policy.AllowanceLimit}
	var freeUsedAt sql.NullTime
	row := tx.QueryRowContext(ctx, `
SELECT free_used, free_used_at, allowance_used, period_start FROM mock_pdf_entitlements WHERE user_id = $1 FOR UPDATE`, userID)
	err := row.Scan(&r.FreeUsed, &freeUsedAt, &r.AllowanceUsed, &r.PeriodStart)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		now := s.now()
		rollPeriod(&r, s.policy, now)
		if _, err = tx.ExecContext(ctx, `
INSERT INTO mock_pdf_entitlements (user_id, free_used, allowance_used, period_start, updated_at) VALUES ($1, FALSE, 0, $2, $2)`,
			userID, r.PeriodStart); err != nil {
			return Record{}, err
		}
		return r, nil
	}
	if freeUsedAt.Valid {
		t := freeUsedAt.Time
		r.FreeUsedAt = &t
	}

	if rollPeriod(&r, s.policy, s.now()) {
		if _, err = tx.ExecContext(ctx, `
UPDATE mock_pdf_entitlements SET allowance_used = $1, period_start = $2 WHERE user_id = $3`, r.AllowanceUsed, r.PeriodStart, userID); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}
