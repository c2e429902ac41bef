package payments

import (
	"errors"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

const (
	StatusCreated  = "created"
	StatusCaptured = "captured"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotPayable       = errors.New("request does not need payment")
	ErrAlreadyPaid      = errors.New("request already paid")
	ErrAlreadyCaptured  = errors.New("order already captured with a different payment")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrDuplicateOrder   = errors.New("order already exists for request")
	ErrAmountMismatch   = errors.New("amount does not match the request")
	ErrGateway          = errors.New("payment gateway error")
)

// Order is a payment order tied to exactly one bundle request.
type Order struct {
	OrderID    string
	JobID      string
	UserID     string
	Provider   string
	Amount     int64
	Currency   string
	Status     string
	PaymentID  string
	Signature  string
	CreatedAt  time.Time
	CapturedAt *time.Time
}

// Wire converts the order to the shape the client checkout consumes.
func (o Order) Wire(keyID string) mockpdf.PaymentOrder {
	return mockpdf.PaymentOrder{
		OrderID:        o.OrderID,
		JobID:          o.JobID,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Provider:       o.Provider,
		GatewayOrderID: o.OrderID,
		KeyID:          keyID,
		Status:         o.Status,
	}
}
