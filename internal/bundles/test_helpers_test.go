package bundles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WeDesignz/WebApp-sub000/internal/catalog"
	"github.com/WeDesignz/WebApp-sub000/internal/entitlements"
	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/queue"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/object/local"
)

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	// failures is the number of upcoming sends that fail.
	failures int
}

var errQueueDown = errors.New("sqs down")

func (q *recordingQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return errQueueDown
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) jobIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.msgs))
	for _, m := range q.msgs {
		out = append(out, m.JobID)
	}
	return out
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepo
	queue  *recordingQueue
	events *events.Memory
	ents   *entitlements.Service
}

func testPrices() mockpdf.PriceTable {
	return mockpdf.PriceTable{
		Currency:          "INR",
		FirstNUnitPrice:   500,
		SpecificUnitPrice: 1000,
		FreeTierSize:      50,
		AllowedSizes:      []int{50, 100, 200, 500},
	}
}

func newFixture(t *testing.T, allowance int) *fixture {
	t.Helper()
	ents, err := entitlements.NewService(entitlements.NewMemoryStore(entitlements.Policy{AllowanceLimit: allowance}), testPrices())
	require.NoError(t, err)
	f := &fixture{
		repo:   NewMemoryRepo(),
		queue:  &recordingQueue{},
		events: events.NewMemory(),
		ents:   ents,
	}
	f.svc = &Service{
		Repo:         f.repo,
		Catalog:      catalog.NewMemoryRepo(catalog.DemoDesigns(120)...),
		Entitlements: ents,
		Store:        local.New(t.TempDir()),
		Events:       f.events,
		Queue:        f.queue,
	}
	return f
}

func firstIDs(n int) []string {
	designs := catalog.DemoDesigns(n)
	out := make([]string, n)
	for i, d := range designs {
		out[i] = d.ID
	}
	return out
}

func freeInput() CreateInput {
	return CreateInput{Strategy: "first_n", RequiredCount: 50, ProductIDs: firstIDs(50), IsFree: true}
}

func paidInput() CreateInput {
	return CreateInput{
		Strategy:        "specific",
		RequiredCount:   50,
		ProductIDs:      firstIDs(50),
		CustomerName:    "Asha Rao",
		CustomerContact: "+91 98765 43210",
	}
}
