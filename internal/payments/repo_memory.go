package payments

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps orders in process.
type MemoryRepo struct {
	mu     sync.RWMutex
	orders map[string]Order
	byJob  map[string]string
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[string]Order), byJob: make(map[string]string)}
}

func (r *MemoryRepo) Create(ctx context.Context, o Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byJob[o.JobID]; ok {
		return ErrDuplicateOrder
	}
	r.orders[o.OrderID] = o
	r.byJob[o.JobID] = o.OrderID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) GetByJob(ctx context.Context, jobID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byJob[jobID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return r.orders[id], nil
}

func (r *MemoryRepo) MarkCaptured(ctx context.Context, orderID, paymentID, signature string, at time.Time) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status == StatusCaptured {
		return o, nil
	}
	o.Status = StatusCaptured
	o.PaymentID = paymentID
	o.Signature = signature
	o.CapturedAt = &at
	r.orders[orderID] = o
	return o, nil
}
