package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

// DownloadItem is one row of the user's downloads list.
type DownloadItem struct {
	mockpdf.Job
	Strategy  mockpdf.Strategy `json:"strategy"`
	Count     int              `json:"count"`
	IsFree    bool             `json:"isFree"`
	Amount    int64            `json:"amount"`
	Currency  string           `json:"currency"`
	Paid      bool             `json:"paid"`
	PageCount int              `json:"pageCount,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ListDownloads fetches the downloads list without caching.
func (c *Client) ListDownloads(ctx context.Context) ([]DownloadItem, error) {
	var out struct {
		Items []DownloadItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/mock-pdf/requests", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Download streams a completed artifact into w.
func (c *Client) Download(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/mock-pdf/requests/"+url.PathEscape(jobID)+"/download", nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

// Downloads caches the downloads list until it goes stale or is invalidated.
type Downloads struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	items     []DownloadItem
	fetchedAt time.Time
	valid     bool
}

var _ mockpdf.Invalidator = (*Downloads)(nil)

// NewDownloads returns a cached view over client. A ttl of zero caches until invalidated.
func NewDownloads(client *Client, ttl time.Duration) *Downloads {
	return &Downloads{client: client, ttl: ttl, now: time.Now}
}

// List returns the cached list, refetching when needed.
func (d *Downloads) List(ctx context.Context) ([]DownloadItem, error) {
	d.mu.Lock()
	if d.valid && (d.ttl <= 0 || d.now().Sub(d.fetchedAt) < d.ttl) {
		items := append([]DownloadItem(nil), d.items...)
		d.mu.Unlock()
		return items, nil
	}
	d.mu.Unlock()

	items, err := d.client.ListDownloads(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.items = items
	d.fetchedAt = d.now()
	d.valid = true
	d.mu.Unlock()
	return append([]DownloadItem(nil), items...), nil
}

// InvalidateDownloads drops the cached list so the next List refetches.
func (d *Downloads) InvalidateDownloads(ctx context.Context) {
	d.mu.Lock()
	d.valid = false
	d.mu.Unlock()
}
