package apiclient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/payments"
)

// DevCheckout completes checkout instantly against the local gateway by
// signing a fabricated payment with the shared dev secret.
type DevCheckout struct {
	Secret string
	// Cancel simulates the user closing the widget.
	Cancel bool
}

var _ mockpdf.Checkout = DevCheckout{}

func (d DevCheckout) Open(ctx context.Context, order mockpdf.PaymentOrder) (mockpdf.PaymentConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return mockpdf.PaymentConfirmation{}, err
	}
	if d.Cancel {
		return mockpdf.PaymentConfirmation{}, mockpdf.ErrCheckoutCancelled
	}
	orderID := order.GatewayOrderID
	if orderID == "" {
		orderID = order.OrderID
	}
	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return mockpdf.PaymentConfirmation{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: payments.Sign(d.Secret, orderID, paymentID),
	}, nil
}
