package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entitlementCols = []string{"free_used", "free_used_at", "allowance_used", "period_start"}

func newPG(t *testing.T, limit int) (*pgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db, Policy{AllowanceLimit: limit}).(*pgStore), mock
}

func TestPGStoreGetCreatesMissingRow(t *testing.T) {
	s, mock := newPG(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used, free_used_at, allowance_used, period_start FROM mock_pdf_entitlements").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols))
	mock.ExpectExec("INSERT INTO mock_pdf_entitlements").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, rec.Snapshot().IsFreeEligible)
	assert.Equal(t, 3, rec.Snapshot().SubscriptionAllowanceRemaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreConsumeFree(t *testing.T) {
	s, mock := newPG(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols).AddRow(false, nil, 0, time.Now().UTC().Add(-time.Hour)))
	mock.ExpectExec("UPDATE mock_pdf_entitlements SET free_used = TRUE").
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.ConsumeFree(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, rec.FreeUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreConsumeFreeAlreadyUsedRollsBack(t *testing.T) {
	s, mock := newPG(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols).AddRow(true, time.Now().UTC(), 0, time.Now().UTC()))
	mock.ExpectRollback()

	_, err := s.ConsumeFree(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrFreeBundleUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreRollsExpiredPeriod(t *testing.T) {
	s, mock := newPG(t, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols).AddRow(true, nil, 2, time.Now().UTC().Add(-40*24*time.Hour)))
	mock.ExpectExec("UPDATE mock_pdf_entitlements SET allowance_used = \\$1, period_start").
		WithArgs(0, sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE mock_pdf_entitlements SET allowance_used = \\$1, updated_at").
		WithArgs(1, sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.ConsumeAllowance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.AllowanceRemaining())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreReset(t *testing.T) {
	s, mock := newPG(t, 1)

	mock.ExpectExec("INSERT INTO mock_pdf_entitlements .* ON CONFLICT").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.Reset(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, rec.FreeUsed)
	assert.Equal(t, 1, rec.AllowanceRemaining())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreReleaseFree(t *testing.T) {
	s, mock := newPG(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols).AddRow(true, time.Now().UTC(), 0, time.Now().UTC().Add(-time.Hour)))
	mock.ExpectExec("UPDATE mock_pdf_entitlements SET free_used = FALSE").
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.ReleaseFree(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, rec.Snapshot().IsFreeEligible)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreReleaseAllowanceWithNothingUsed(t *testing.T) {
	s, mock := newPG(t, 2)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT free_used").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementCols).AddRow(true, nil, 0, time.Now().UTC().Add(-time.Hour)))
	mock.ExpectCommit()

	rec, err := s.ReleaseAllowance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.AllowanceRemaining())
	require.NoError(t, mock.ExpectationsWereMet())
}
