package payments

import (
	"context"
	"time"
)

// Repo persists payment orders. Create returns ErrDuplicateOrder when the job
// already has an order.
type Repo interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, orderID string) (Order, error)
	GetByJob(ctx context.Context, jobID string) (Order, error)
	// MarkCaptured moves a created order to captured and returns the stored order.
	// An order that is already captured is returned unchanged.
	MarkCaptured(ctx context.Context, orderID, paymentID, signature string, at time.Time) (Order, error)
}
