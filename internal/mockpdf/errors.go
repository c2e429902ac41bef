package mockpdf

import (
	"errors"
	"fmt"
)

var (
	ErrLimitReached       = errors.New("selection limit reached")
	ErrWrongMode          = errors.New("operation not available in the current selection mode")
	ErrUnknownDesign      = errors.New("design is not in the current results")
	ErrNotAuthenticated   = errors.New("login required")
	ErrSubmissionInFlight = errors.New("a request is already in progress")
	ErrCheckoutCancelled  = errors.New("checkout cancelled")
	ErrTakingLonger       = errors.New("generation is taking longer than expected")
	ErrStopped            = errors.New("tracking stopped")
)

// ValidationError is a local input problem. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError is a rejection of the generation request by the server.
// Message is the server's text, shown to the user as-is.
type SubmissionError struct {
	Code    string
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request was rejected"
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PaymentError covers order creation and checkout failures, including cancellation.
type PaymentError struct {
	Stage   string
	JobID   string
	OrderID string
	Err     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed for job %s: %v", e.Stage, e.JobID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Cancelled reports whether the user closed the checkout.
func (e *PaymentError) Cancelled() bool { return errors.Is(e.Err, ErrCheckoutCancelled) }

// CaptureError means money may have moved but the backend did not verify it.
type CaptureError struct {
	JobID     string
	OrderID   string
	PaymentID string
	Err       error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("payment capture failed (job=%s order=%s payment=%s): %v", e.JobID, e.OrderID, e.PaymentID, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// GenerationFailure is a job that reached the failed status.
type GenerationFailure struct {
	JobID  string
	Reason string
}

func (e *GenerationFailure) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("generation failed for job %s", e.JobID)
	}
	return fmt.Sprintf("generation failed for job %s: %s", e.JobID, e.Reason)
}

// Describe converts any workflow error into a message fit for a toast.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var (
		validation *ValidationError
		submission *SubmissionError
		payment    *PaymentError
		capture    *CaptureError
		generation *GenerationFailure
	)
	switch {
	case errors.As(err, &validation):
		return fmt.Sprintf("Please fix %s: %s.", validation.Field, validation.Reason)
	case errors.As(err, &capture):
		return fmt.Sprintf("Your payment %s could not be verified for order %s. Please contact support with these references before paying again.", capture.PaymentID, capture.OrderID)
	case errors.As(err, &payment):
		if payment.Cancelled() {
			return "Payment was cancelled. No PDF will be generated."
		}
		return "Payment failed. No PDF will be generated; please start again."
	case errors.As(err, &submission):
		return submission.Error()
	case errors.As(err, &generation):
		return "We could not generate your PDF. Please contact support."
	case errors.Is(err, ErrTakingLonger):
		return "Your PDF is taking longer than expected. It will appear in your downloads when ready."
	case errors.Is(err, ErrLimitReached):
		return "You have already selected the maximum number of designs."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please log in to download designs."
	case errors.Is(err, ErrSubmissionInFlight):
		return "A request is already in progress."
	default:
		return "Something went wrong. Please try again."
	}
}
