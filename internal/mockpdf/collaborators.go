package mockpdf

import "context"

// Catalog searches designs page by page.
type Catalog interface {
	Search(ctx context.Context, q CatalogQuery) (CatalogPage, error)
}

// Entitlements serves the caller's eligibility and the price table.
type Entitlements interface {
	Eligibility(ctx context.Context) (EligibilitySnapshot, error)
	PriceTable(ctx context.Context) (PriceTable, error)
}

// JobSource reads generation job state.
type JobSource interface {
	JobStatus(ctx context.Context, jobID string) (Job, error)
}

// JobSourceFunc adapts a function to JobSource.
type JobSourceFunc func(ctx context.Context, jobID string) (Job, error)

func (f JobSourceFunc) JobStatus(ctx context.Context, jobID string) (Job, error) {
	return f(ctx, jobID)
}

// Generation creates and observes generation jobs.
type Generation interface {
	JobSource
	CreateRequest(ctx context.Context, req BundleRequest) (CreatedJob, error)
}

// Payments creates gateway orders and captures confirmed payments.
type Payments interface {
	CreateOrder(ctx context.Context, jobID string, amount int64) (PaymentOrder, error)
	Capture(ctx context.Context, conf PaymentConfirmation) error
}

// Checkout drives the external payment widget. It returns ErrCheckoutCancelled
// when the user closes it without paying.
type Checkout interface {
	Open(ctx context.Context, order PaymentOrder) (PaymentConfirmation, error)
}

// CheckoutFunc adapts a function to Checkout.
type CheckoutFunc func(ctx context.Context, order PaymentOrder) (PaymentConfirmation, error)

func (f CheckoutFunc) Open(ctx context.Context, order PaymentOrder) (PaymentConfirmation, error) {
	return f(ctx, order)
}

// Invalidator drops cached "downloads" views after a job completes.
type Invalidator interface {
	InvalidateDownloads(ctx context.Context)
}

// NotificationKind classifies a user-facing notification.
type NotificationKind string

const (
	NotifyValidation       NotificationKind = "validation_error"
	NotifySubmitted        NotificationKind = "submitted"
	NotifySubmissionFailed NotificationKind = "submission_failed"
	NotifyPaymentFailed    NotificationKind = "payment_failed"
	NotifyCaptureFailed    NotificationKind = "capture_failed"
	NotifyCompleted        NotificationKind = "completed"
	NotifyGenerationFailed NotificationKind = "generation_failed"
	NotifyDelayed          NotificationKind = "delayed"
)

// Notification is a fire-and-forget message for the toast layer.
type Notification struct {
	Kind    NotificationKind
	JobID   string
	Message string
	Err     error
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
