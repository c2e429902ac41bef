package mockpdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// State is the orchestrator's position in the request workflow.
type State string

const (
	StateIdle            State = "idle"
	StateSubmitting      State = "submitting"
	StateAwaitingPayment State = "awaiting_payment"
	StateCapturing       State = "capturing"
	StatePolling         State = "polling"
	StateDone            State = "done"
	StateFailed          State = "failed"
	StateDelayed         State = "delayed"
)

// acceptsSubmit reports whether a new Submit may start from s.
func (s State) acceptsSubmit() bool {
	return s == StateIdle || s == StateFailed
}

func (s State) terminal() bool {
	return s == StateDone || s == StateFailed || s == StateDelayed
}

// OrchestratorDeps wires the orchestrator to its collaborators. Notifier and
// OnStateChange are optional.
type OrchestratorDeps struct {
	Eligibility   *EligibilityResolver
	Pricing       *Calculator
	Generation    Generation
	Payments      Payments
	Checkout      Checkout
	Tracker       *Tracker
	Notifier      Notifier
	OnStateChange func(from, to State)
}

// SubmitInput is one user action: a finished selection plus buyer details.
type SubmitInput struct {
	Authenticated            bool
	Selection                Selection
	UseSubscriptionAllowance bool
	CustomerName             string
	CustomerContact          string
}

// Outcome describes what a Submit achieved, including partial progress on failure.
type Outcome struct {
	JobID       string
	IsFree      bool
	Amount      int64
	Currency    string
	OrderID     string
	PaymentID   string
	Job         Job
	ArtifactRef string
}

// Orchestrator drives a single in-flight bundle request from validation to a
// terminal job status.
type Orchestrator struct {
	deps OrchestratorDeps

	mu    sync.Mutex
	state State
}

// NewOrchestrator returns an idle orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	return &Orchestrator{deps: deps, state: StateIdle}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reset returns a finished orchestrator to idle. It fails while a request is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	from := o.state
	if !from.terminal() && from != StateIdle {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	o.state = StateIdle
	o.mu.Unlock()
	o.changed(from, StateIdle)
	return nil
}

func (o *Orchestrator) claim() (State, error) {
	o.mu.Lock()
	from := o.state
	if !from.acceptsSubmit() {
		o.mu.Unlock()
		return from, ErrSubmissionInFlight
	}
	o.state = StateSubmitting
	o.mu.Unlock()
	o.changed(from, StateSubmitting)
	return from, nil
}

func (o *Orchestrator) set(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()
	o.changed(from, to)
}

func (o *Orchestrator) changed(from, to State) {
	if from != to && o.deps.OnStateChange != nil {
		o.deps.OnStateChange(from, to)
	}
}

// Submit runs the whole workflow for in. Only one Submit may be active at a time;
// a second call gets ErrSubmissionInFlight until the first ends in failed, or
// until Reset after done or delayed.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (Outcome, error) {
	prev, err := o.claim()
	if err != nil {
		return Outcome{}, err
	}

	req, quote, err := o.prepare(ctx, in)
	if err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) || errors.Is(err, ErrNotAuthenticated) {
			o.set(prev)
			o.deps.Notifier.Notify(Notification{Kind: NotifyValidation, Message: Describe(err), Err: err})
			return Outcome{}, err
		}
		return Outcome{}, o.fail(Notification{Kind: NotifySubmissionFailed}, err)
	}

	out := Outcome{IsFree: quote.IsFree, Amount: quote.Amount, Currency: quote.Currency}

	created, err := o.deps.Generation.CreateRequest(ctx, req)
	if err != nil {
		return out, o.fail(Notification{Kind: NotifySubmissionFailed}, asSubmissionError(err))
	}
	out.JobID = created.JobID
	if created.Amount > 0 || created.Currency != "" {
		out.Amount, out.IsFree = created.Amount, created.IsFree
		out.Currency = created.Currency
	}
	o.deps.Eligibility.Invalidate()
	o.deps.Notifier.Notify(Notification{Kind: NotifySubmitted, JobID: out.JobID, Message: "Your request has been submitted."})

	if !out.IsFree && out.Amount > 0 {
		if err := o.pay(ctx, &out); err != nil {
			return out, err
		}
	}

	o.set(StatePolling)
	job, err := o.deps.Tracker.Wait(ctx, out.JobID)
	out.Job = job
	switch {
	case errors.Is(err, ErrTakingLonger):
		o.set(StateDelayed)
		o.deps.Notifier.Notify(Notification{Kind: NotifyDelayed, JobID: out.JobID, Message: Describe(err), Err: err})
		return out, err
	case err != nil:
		return out, o.fail(Notification{Kind: NotifyGenerationFailed, JobID: out.JobID}, fmt.Errorf("track job %s: %w", out.JobID, err))
	case job.Status == StatusFailed:
		return out, o.fail(Notification{Kind: NotifyGenerationFailed, JobID: out.JobID}, &GenerationFailure{JobID: out.JobID, Reason: job.Error})
	}

	out.ArtifactRef = job.ArtifactRef
	o.set(StateDone)
	o.deps.Notifier.Notify(Notification{Kind: NotifyCompleted, JobID: out.JobID, Message: "Your PDF is ready."})
	return out, nil
}

// prepare validates in locally and against fresh eligibility and pricing, and builds
// the request. Known-invalid input never reaches the generation service.
func (o *Orchestrator) prepare(ctx context.Context, in SubmitInput) (BundleRequest, Quote, error) {
	sel := in.Selection
	if err := validateSelection(sel); err != nil {
		return BundleRequest{}, Quote{}, err
	}
	if !in.Authenticated {
		return BundleRequest{}, Quote{}, ErrNotAuthenticated
	}

	snap, err := o.deps.Eligibility.Refresh(ctx, in.Authenticated)
	if err != nil {
		return BundleRequest{}, Quote{}, &SubmissionError{Code: "eligibility_unavailable", Message: "Could not check your download eligibility.", Err: err}
	}
	quote, err := o.deps.Pricing.Quote(ctx, sel.Strategy, sel.RequiredCount, snap, in.UseSubscriptionAllowance)
	if err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) {
			return BundleRequest{}, Quote{}, err
		}
		return BundleRequest{}, Quote{}, &SubmissionError{Code: "pricing_unavailable", Message: "Could not load pricing.", Err: err}
	}

	req := BundleRequest{
		Strategy:                 sel.Strategy,
		RequiredCount:            sel.RequiredCount,
		ProductIDs:               append([]string(nil), sel.ProductIDs...),
		IsFree:                   quote.IsFree,
		UseSubscriptionAllowance: quote.UsesAllowance,
	}
	if quote.IsFree {
		return req, quote, nil
	}

	if !quote.Table.AllowsSize(sel.RequiredCount) {
		return BundleRequest{}, Quote{}, &ValidationError{
			Field:  "requiredCount",
			Reason: fmt.Sprintf("%d is not an available bundle size (choose from %v)", sel.RequiredCount, quote.Table.AllowedSizes),
		}
	}
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return BundleRequest{}, Quote{}, &ValidationError{Field: "customerName", Reason: "is required for paid downloads"}
	}
	contact, err := NormalizeContact(in.CustomerContact)
	if err != nil {
		return BundleRequest{}, Quote{}, err
	}
	req.CustomerName = name
	req.CustomerContact = contact
	return req, quote, nil
}

func validateSelection(sel Selection) error {
	if !sel.Strategy.Valid() {
		return &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", sel.Strategy)}
	}
	if sel.RequiredCount <= 0 {
		return &ValidationError{Field: "requiredCount", Reason: "must be positive"}
	}
	if n := len(sel.ProductIDs); n != sel.RequiredCount {
		if n < sel.RequiredCount {
			return &ValidationError{Field: "productIds", Reason: fmt.Sprintf("need %d more designs", sel.RequiredCount-n)}
		}
		return &ValidationError{Field: "productIds", Reason: fmt.Sprintf("%d designs selected, expected exactly %d", n, sel.RequiredCount)}
	}
	seen := make(map[string]struct{}, len(sel.ProductIDs))
	for _, id := range sel.ProductIDs {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Field: "productIds", Reason: "contains an empty id"}
		}
		if _, dup := seen[id]; dup {
			return &ValidationError{Field: "productIds", Reason: fmt.Sprintf("design %s is listed twice", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// pay creates the order, opens checkout and captures exactly once.
func (o *Orchestrator) pay(ctx context.Context, out *Outcome) error {
	o.set(StateAwaitingPayment)

	order, err := o.deps.Payments.CreateOrder(ctx, out.JobID, out.Amount)
	if err != nil {
		return o.fail(Notification{Kind: NotifyPaymentFailed, JobID: out.JobID}, &PaymentError{Stage: "order", JobID: out.JobID, Err: err})
	}
	out.OrderID = order.OrderID

	conf, err := o.deps.Checkout.Open(ctx, order)
	if err != nil {
		return o.fail(Notification{Kind: NotifyPaymentFailed, JobID: out.JobID}, &PaymentError{Stage: "checkout", JobID: out.JobID, OrderID: order.OrderID, Err: err})
	}
	out.PaymentID = conf.PaymentID

	o.set(StateCapturing)
	if err := o.deps.Payments.Capture(ctx, conf); err != nil {
		capErr := &CaptureError{JobID: out.JobID, OrderID: order.OrderID, PaymentID: conf.PaymentID, Err: err}
		telemetry.Error("mockpdf.capture_failed", map[string]any{
			"job_id":     out.JobID,
			"order_id":   order.OrderID,
			"payment_id": conf.PaymentID,
			"amount":     out.Amount,
			"currency":   out.Currency,
			"error":      err.Error(),
		})
		return o.fail(Notification{Kind: NotifyCaptureFailed, JobID: out.JobID}, capErr)
	}
	return nil
}

func (o *Orchestrator) fail(n Notification, err error) error {
	o.set(StateFailed)
	n.Err = err
	n.Message = Describe(err)
	o.deps.Notifier.Notify(n)
	return err
}

func asSubmissionError(err error) error {
	var sub *SubmissionError
	if errors.As(err, &sub) {
		return err
	}
	return &SubmissionError{Message: err.Error(), Err: err}
}
