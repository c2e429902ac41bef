package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

func TestCreateOrderUsesStoredAmountAndIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, paidBundle("job-1", "user-1"))
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "local", o.Provider)
	assert.Equal(t, StatusCreated, o.Status)

	again, err := svc.CreateOrder(ctx, "user-1", "job-1", 50000)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, again.OrderID)
}

func TestCreateOrderRejections(t *testing.T) {
	free := paidBundle("job-free", "user-1")
	free.IsFree = true
	free.Amount = 0
	paid := paidBundle("job-paid", "user-1")
	paid.Paid = true

	svc, _ := newTestService(t, paidBundle("job-1", "user-1"), free, paid)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "user-1", "job-free", 0)
	assert.ErrorIs(t, err, ErrNotPayable)

	_, err = svc.CreateOrder(ctx, "user-1", "job-paid", 0)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	_, err = svc.CreateOrder(ctx, "user-2", "job-1", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateOrder(ctx, "user-1", "job-1", 100)
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	svc, _ := newTestService(t, paidBundle("job-1", "user-1"))
	svc.Gateway = failingGateway{}

	_, err := svc.CreateOrder(context.Background(), "user-1", "job-1", 0)
	assert.ErrorIs(t, err, ErrGateway)

	_, err = svc.Repo.GetByJob(context.Background(), "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCaptureMarksBundlePaid(t *testing.T) {
	svc, fb := newTestService(t, paidBundle("job-1", "user-1"))
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)

	conf := mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: Sign(testSecret, o.OrderID, "pay_1")}
	captured, err := svc.Capture(ctx, "user-1", conf)
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, captured.Status)
	assert.Equal(t, "pay_1", captured.PaymentID)
	require.NotNil(t, captured.CapturedAt)
	assert.Equal(t, []string{"job-1"}, fb.paid)

	// Same payment again succeeds.
	_, err = svc.Capture(ctx, "user-1", conf)
	require.NoError(t, err)

	other := mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_2", Signature: Sign(testSecret, o.OrderID, "pay_2")}
	_, err = svc.Capture(ctx, "user-1", other)
	assert.ErrorIs(t, err, ErrAlreadyCaptured)

	_, err = svc.CreateOrder(ctx, "user-1", "job-1", 0)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestCaptureRejectsBadSignatureAndForeignUser(t *testing.T) {
	svc, fb := newTestService(t, paidBundle("job-1", "user-1"))
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)

	_, err = svc.Capture(ctx, "user-1", mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = svc.Capture(ctx, "user-2", mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: Sign(testSecret, o.OrderID, "pay_1")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Capture(ctx, "user-1", mockpdf.PaymentConfirmation{OrderID: "order_missing", PaymentID: "pay_1"})
	assert.ErrorIs(t, err, ErrNotFound)

	var validation *mockpdf.ValidationError
	_, err = svc.Capture(ctx, "user-1", mockpdf.PaymentConfirmation{OrderID: o.OrderID})
	assert.True(t, errors.As(err, &validation))

	assert.Empty(t, fb.paid)
	stored, err := svc.Repo.GetByID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, stored.Status)
}

func TestCaptureRetriesMarkPaid(t *testing.T) {
	svc, fb := newTestService(t, paidBundle("job-1", "user-1"))
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)
	conf := mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: Sign(testSecret, o.OrderID, "pay_1")}

	fb.paidErr = errors.New("queue down")
	_, err = svc.Capture(ctx, "user-1", conf)
	require.Error(t, err)

	fb.paidErr = nil
	_, err = svc.Capture(ctx, "user-1", conf)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, fb.paid)
}

func TestCaptureWithRealBundleService(t *testing.T) {
	repo := bundles.NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, paidBundle("job-1", "user-1")))
	bsvc := &bundles.Service{Repo: repo, Queue: nopQueue{}}

	svc := &Service{Repo: NewMemoryRepo(), Gateway: LocalGateway{Secret: testSecret}, Bundles: bsvc}
	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)
	_, err = svc.Capture(ctx, "user-1", mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: Sign(testSecret, o.OrderID, "pay_1")})
	require.NoError(t, err)

	b, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, b.Paid)
}

func TestCaptureRetryQueuesPaidJobAfterEnqueueFailure(t *testing.T) {
	repo := bundles.NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, paidBundle("job-1", "user-1")))
	q := &flakyQueue{fail: 1}
	bsvc := &bundles.Service{Repo: repo, Queue: q}

	svc := &Service{Repo: NewMemoryRepo(), Gateway: LocalGateway{Secret: testSecret}, Bundles: bsvc}
	o, err := svc.CreateOrder(ctx, "user-1", "job-1", 0)
	require.NoError(t, err)
	conf := mockpdf.PaymentConfirmation{OrderID: o.OrderID, PaymentID: "pay_1", Signature: Sign(testSecret, o.OrderID, "pay_1")}

	_, err = svc.Capture(ctx, "user-1", conf)
	require.Error(t, err)
	assert.Empty(t, q.sent)

	_, err = svc.Capture(ctx, "user-1", conf)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, q.sent)

	b, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, b.Paid)
	assert.Equal(t, mockpdf.StatusPending, b.Status)
}
