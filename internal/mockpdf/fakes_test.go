package mockpdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// designs builds n designs with ids "<prefix>-1".."<prefix>-n".
func designs(prefix string, n int) []Design {
	out := make([]Design, n)
	for i := range out {
		out[i] = Design{ID: fmt.Sprintf("%s-%d", prefix, i+1), Title: fmt.Sprintf("Design %d", i+1)}
	}
	return out
}

// fakeCatalog pages over a fixed item list per filter query. A non-nil gate blocks
// Search until a value is sent for that query.
type fakeCatalog struct {
	mu      sync.Mutex
	items   map[string][]Design
	calls   []CatalogQuery
	gates   map[string]chan struct{}
	failFor map[string]error
}

func newFakeCatalog(items []Design) *fakeCatalog {
	return &fakeCatalog{items: map[string][]Design{"": items}}
}

func (c *fakeCatalog) set(query string, items []Design) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[query] = items
}

func (c *fakeCatalog) gate(query string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gates == nil {
		c.gates = map[string]chan struct{}{}
	}
	ch := make(chan struct{})
	c.gates[query] = ch
	return ch
}

func (c *fakeCatalog) Search(ctx context.Context, q CatalogQuery) (CatalogPage, error) {
	c.mu.Lock()
	c.calls = append(c.calls, q)
	gate := c.gates[q.Query]
	failErr := c.failFor[q.Query]
	all := c.items[q.Query]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return CatalogPage{}, ctx.Err()
		}
	}
	if failErr != nil {
		return CatalogPage{}, failErr
	}

	start := (q.Page - 1) * q.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PageSize
	if end > len(all) {
		end = len(all)
	}
	return CatalogPage{Items: append([]Design(nil), all[start:end]...), Page: q.Page, HasMore: end < len(all)}, nil
}

func (c *fakeCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeEntitlements struct {
	mu         sync.Mutex
	snap       EligibilitySnapshot
	table      PriceTable
	err        error
	eligCalls  int
	tableCalls int
}

func defaultTable() PriceTable {
	return PriceTable{
		Currency:          "INR",
		FirstNUnitPrice:   500,
		SpecificUnitPrice: 1000,
		FreeTierSize:      50,
		AllowedSizes:      []int{50, 100, 200, 500},
	}
}

func (f *fakeEntitlements) Eligibility(ctx context.Context) (EligibilitySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eligCalls++
	return f.snap, f.err
}

func (f *fakeEntitlements) PriceTable(ctx context.Context) (PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableCalls++
	return f.table, f.err
}

func (f *fakeEntitlements) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eligCalls, f.tableCalls
}

// fakeGeneration replays a status script; the last entry repeats forever.
type fakeGeneration struct {
	mu        sync.Mutex
	script    []Job
	errs      []error
	fetches   int
	created   []BundleRequest
	createErr error
	jobID     string
}

func (g *fakeGeneration) CreateRequest(ctx context.Context, req BundleRequest) (CreatedJob, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return CreatedJob{}, g.createErr
	}
	id := g.jobID
	if id == "" {
		id = "job-1"
	}
	return CreatedJob{JobID: id, Status: StatusPending, IsFree: req.IsFree}, nil
}

func (g *fakeGeneration) JobStatus(ctx context.Context, jobID string) (Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.fetches
	g.fetches++
	if i < len(g.errs) && g.errs[i] != nil {
		return Job{}, g.errs[i]
	}
	if len(g.script) == 0 {
		return Job{ID: jobID, Status: StatusPending}, nil
	}
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	job := g.script[i]
	job.ID = jobID
	return job, nil
}

func (g *fakeGeneration) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

func (g *fakeGeneration) createdRequests() []BundleRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]BundleRequest(nil), g.created...)
}

type fakePayments struct {
	mu         sync.Mutex
	orders     []string
	captures   []PaymentConfirmation
	orderErr   error
	captureErr error
}

func (p *fakePayments) CreateOrder(ctx context.Context, jobID string, amount int64) (PaymentOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orderErr != nil {
		return PaymentOrder{}, p.orderErr
	}
	p.orders = append(p.orders, jobID)
	return PaymentOrder{OrderID: "order-" + jobID, JobID: jobID, Amount: amount, Currency: "INR", Provider: "local"}, nil
}

func (p *fakePayments) Capture(ctx context.Context, conf PaymentConfirmation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures = append(p.captures, conf)
	return p.captureErr
}

func (p *fakePayments) captureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.captures)
}

func approvingCheckout() Checkout {
	return CheckoutFunc(func(ctx context.Context, order PaymentOrder) (PaymentConfirmation, error) {
		return PaymentConfirmation{OrderID: order.OrderID, PaymentID: "pay-" + order.JobID, Signature: "sig"}, nil
	})
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateDownloads(ctx context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	r.kinds = append(r.kinds, n.Kind)
	r.mu.Unlock()
}

func (r *recordingNotifier) has(kind NotificationKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")

func ids(ds []Design) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func hasPrefixAll(list []string, prefix string) bool {
	for _, s := range list {
		if !strings.HasPrefix(s, prefix) {
			return false
		}
	}
	return true
}
