package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/queue"
)

const testSecret = "test-secret"

type fakeBundles struct {
	mu      sync.Mutex
	items   map[string]bundles.Bundle
	paid    []string
	paidErr error
}

func newFakeBundles(items ...bundles.Bundle) *fakeBundles {
	f := &fakeBundles{items: map[string]bundles.Bundle{}}
	for _, b := range items {
		f.items[b.ID] = b
	}
	return f
}

func (f *fakeBundles) Get(ctx context.Context, userID, id string) (bundles.Bundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok || b.UserID != userID {
		return bundles.Bundle{}, bundles.ErrNotFound
	}
	return b, nil
}

func (f *fakeBundles) MarkPaid(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paidErr != nil {
		return f.paidErr
	}
	b := f.items[id]
	b.Paid = true
	f.items[id] = b
	f.paid = append(f.paid, id)
	return nil
}

type nopQueue struct{}

func (nopQueue) Send(context.Context, queue.Message) error { return nil }

// flakyQueue fails its first `fail` sends and records the rest.
type flakyQueue struct {
	mu   sync.Mutex
	fail int
	sent []string
}

func (q *flakyQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail > 0 {
		q.fail--
		return errors.New("sqs down")
	}
	q.sent = append(q.sent, msg.JobID)
	return nil
}

type failingGateway struct{ LocalGateway }

func (failingGateway) CreateOrder(context.Context, OrderRequest) (string, error) {
	return "", errors.New("connection refused")
}

func paidBundle(id, userID string) bundles.Bundle {
	return bundles.Bundle{
		ID:            id,
		UserID:        userID,
		Strategy:      mockpdf.StrategySpecific,
		RequiredCount: 50,
		Amount:        50000,
		Currency:      "INR",
		Status:        mockpdf.StatusPending,
	}
}

func newTestService(t *testing.T, items ...bundles.Bundle) (*Service, *fakeBundles) {
	t.Helper()
	fb := newFakeBundles(items...)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Service{
		Repo:    NewMemoryRepo(),
		Gateway: LocalGateway{Secret: testSecret},
		Bundles: fb,
		Now:     func() time.Time { return now },
	}, fb
}
