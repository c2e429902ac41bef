package bundles

import "context"

// Repo defines persistence operations for bundles. UpdateStatus must reject
// transitions that are not strictly forward with ErrInvalidTransition.
type Repo interface {
	Create(ctx context.Context, b Bundle) error
	GetByID(ctx context.Context, id string) (Bundle, error)
	GetForUser(ctx context.Context, userID, id string) (Bundle, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Bundle, error)
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
	// MarkPaid sets the paid flag and reports whether it changed.
	MarkPaid(ctx context.Context, id string) (bool, error)
}
