package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/payments"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
	_, err = New("/api")
	assert.Error(t, err)
}

func TestRequestsCarryIdentity(t *testing.T) {
	var gotAuth, gotGuest, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotGuest = r.Header.Get("X-Guest-Id")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/api/v1/catalog/designs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"d1","title":"One","price":100}],"page":2,"hasMore":true}`))
	}, WithToken(" tok "))

	page, err := c.Search(context.Background(), mockpdf.CatalogQuery{
		Filter:   mockpdf.Filter{Query: "logo", CategoryID: "c1"},
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Empty(t, gotGuest)
	assert.Equal(t, "category=c1&page=2&pageSize=10&q=logo", gotQuery)
	assert.True(t, c.Authenticated())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "d1", page.Items[0].ID)
	assert.True(t, page.HasMore)
}

func TestGuestHeaderWithoutToken(t *testing.T) {
	var gotGuest string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotGuest = r.Header.Get("X-Guest-Id")
		_, _ = w.Write([]byte(`{"currency":"INR","allowedSizes":[50]}`))
	}, WithGuestID("g-1"))

	_, err := c.PriceTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g-1", gotGuest)
	assert.False(t, c.Authenticated())
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"slow down","details":{"group":"CREATE"}}}`))
	})

	_, err := c.JobStatus(context.Background(), "job-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate_limited", apiErr.Code)
	assert.Equal(t, "slow down", apiErr.Message)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.JSONEq(t, `{"group":"CREATE"}`, string(apiErr.Details))
	assert.True(t, IsCode(err, "rate_limited"))
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestErrorWithoutEnvelopeUsesStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.JobStatus(context.Background(), "job-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestEligibilityLoginRequiredMapsToNotAuthenticated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"login_required","message":"Login required to download designs"}}`))
	})

	_, err := c.Eligibility(context.Background())
	assert.ErrorIs(t, err, mockpdf.ErrNotAuthenticated)
}

func TestCreateRequestRejectionIsSubmissionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"free_already_used","message":"Your free bundle has already been used"}}`))
	})

	_, err := c.CreateRequest(context.Background(), mockpdf.BundleRequest{Strategy: mockpdf.StrategyFirstN, RequiredCount: 50})
	var sub *mockpdf.SubmissionError
	require.True(t, errors.As(err, &sub))
	assert.Equal(t, "free_already_used", sub.Code)
	assert.Equal(t, "Your free bundle has already been used", sub.Message)
}

func TestCreateRequestWithoutJobIDIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})

	_, err := c.CreateRequest(context.Background(), mockpdf.BundleRequest{})
	var sub *mockpdf.SubmissionError
	require.True(t, errors.As(err, &sub))
	assert.Equal(t, "invalid_response", sub.Code)
}

func TestDownloadsCacheUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"items":[{"jobId":"job-1","status":"completed","strategy":"first_n","count":50,"isFree":true}]}`))
	})
	d := NewDownloads(c, 0)
	ctx := context.Background()

	items, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "job-1", items[0].ID)
	assert.Equal(t, mockpdf.StatusCompleted, items[0].Status)
	assert.Equal(t, 50, items[0].Count)

	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	d.InvalidateDownloads(ctx)
	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloadsRefetchAfterTTL(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDownloads(c, time.Minute)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := d.List(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Minute)
	_, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDevCheckoutSignsForLocalGateway(t *testing.T) {
	conf, err := DevCheckout{Secret: "s3cret"}.Open(context.Background(), mockpdf.PaymentOrder{OrderID: "order_1", GatewayOrderID: "order_gw"})
	require.NoError(t, err)

	assert.Equal(t, "order_gw", conf.OrderID)
	assert.Regexp(t, `^pay_[0-9a-f]{14}$`, conf.PaymentID)
	assert.True(t, payments.VerifySignature("s3cret", conf.OrderID, conf.PaymentID, conf.Signature))
	assert.False(t, payments.VerifySignature("other", conf.OrderID, conf.PaymentID, conf.Signature))
}

func TestDevCheckoutCancel(t *testing.T) {
	_, err := DevCheckout{Secret: "s", Cancel: true}.Open(context.Background(), mockpdf.PaymentOrder{OrderID: "order_1"})
	assert.ErrorIs(t, err, mockpdf.ErrCheckoutCancelled)
}
