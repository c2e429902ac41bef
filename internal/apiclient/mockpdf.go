package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

var (
	_ mockpdf.Catalog      = (*Client)(nil)
	_ mockpdf.Entitlements = (*Client)(nil)
	_ mockpdf.Generation   = (*Client)(nil)
	_ mockpdf.Payments     = (*Client)(nil)
)

// Search loads one catalog page.
func (c *Client) Search(ctx context.Context, q mockpdf.CatalogQuery) (mockpdf.CatalogPage, error) {
	params := url.Values{}
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if q.CategoryID != "" {
		params.Set("category", q.CategoryID)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	var page mockpdf.CatalogPage
	if err := c.do(ctx, http.MethodGet, "/catalog/designs", params, nil, &page); err != nil {
		return mockpdf.CatalogPage{}, err
	}
	return page, nil
}

// Eligibility loads the caller's free-bundle entitlements.
func (c *Client) Eligibility(ctx context.Context) (mockpdf.EligibilitySnapshot, error) {
	var snap mockpdf.EligibilitySnapshot
	err := c.do(ctx, http.MethodGet, "/mock-pdf/eligibility", nil, nil, &snap)
	if err != nil && IsCode(err, "login_required") {
		return mockpdf.EligibilitySnapshot{}, fmt.Errorf("%w: %v", mockpdf.ErrNotAuthenticated, err)
	}
	return snap, err
}

// PriceTable loads server pricing.
func (c *Client) PriceTable(ctx context.Context) (mockpdf.PriceTable, error) {
	var table mockpdf.PriceTable
	if err := c.do(ctx, http.MethodGet, "/mock-pdf/pricing", nil, nil, &table); err != nil {
		return mockpdf.PriceTable{}, err
	}
	return table, nil
}

// CreateRequest submits a bundle request. Server rejections come back as
// *mockpdf.SubmissionError carrying the server's message.
func (c *Client) CreateRequest(ctx context.Context, req mockpdf.BundleRequest) (mockpdf.CreatedJob, error) {
	var created mockpdf.CreatedJob
	if err := c.do(ctx, http.MethodPost, "/mock-pdf/requests", nil, req, &created); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return mockpdf.CreatedJob{}, &mockpdf.SubmissionError{Code: apiErr.Code, Message: apiErr.Message, Err: err}
		}
		return mockpdf.CreatedJob{}, err
	}
	if created.JobID == "" {
		return mockpdf.CreatedJob{}, &mockpdf.SubmissionError{Code: "invalid_response", Message: "The server did not return a job id."}
	}
	return created, nil
}

// JobStatus reads the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (mockpdf.Job, error) {
	var job mockpdf.Job
	if err := c.do(ctx, http.MethodGet, "/mock-pdf/requests/"+url.PathEscape(jobID), nil, nil, &job); err != nil {
		return mockpdf.Job{}, err
	}
	return job, nil
}

// CreateOrder opens a payment order for a paid job.
func (c *Client) CreateOrder(ctx context.Context, jobID string, amount int64) (mockpdf.PaymentOrder, error) {
	var order mockpdf.PaymentOrder
	body := map[string]int64{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/mock-pdf/requests/"+url.PathEscape(jobID)+"/payment-order", nil, body, &order); err != nil {
		return mockpdf.PaymentOrder{}, err
	}
	return order, nil
}

// Capture hands a checkout confirmation to the backend for verification.
func (c *Client) Capture(ctx context.Context, conf mockpdf.PaymentConfirmation) error {
	return c.do(ctx, http.MethodPost, "/mock-pdf/payments/capture", nil, conf, nil)
}
