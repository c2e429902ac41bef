package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/metrics"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// BundleStore is the part of the bundle service payments depends on.
type BundleStore interface {
	Get(ctx context.Context, userID, id string) (bundles.Bundle, error)
	MarkPaid(ctx context.Context, id string) error
}

// Service opens gateway orders for paid bundles and captures confirmed payments.
type Service struct {
	Repo    Repo
	Gateway Gateway
	Bundles BundleStore
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateOrder returns the order for jobID, opening one with the gateway on the
// first call. The amount always comes from the stored request; a positive
// clientAmount that disagrees with it is rejected.
func (s *Service) CreateOrder(ctx context.Context, userID, jobID string, clientAmount int64) (Order, error) {
	b, err := s.Bundles.Get(ctx, userID, jobID)
	if errors.Is(err, bundles.ErrNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if b.IsFree || b.Amount <= 0 {
		return Order{}, ErrNotPayable
	}
	if b.Paid {
		return Order{}, ErrAlreadyPaid
	}
	if clientAmount > 0 && clientAmount != b.Amount {
		return Order{}, ErrAmountMismatch
	}

	existing, err := s.Repo.GetByJob(ctx, jobID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Order{}, err
	}

	gatewayID, err := s.Gateway.CreateOrder(ctx, OrderRequest{Amount: b.Amount, Currency: b.Currency, Receipt: b.ID})
	if err != nil {
		telemetry.Error("payment.order_failed", map[string]any{
			"job_id":   jobID,
			"provider": s.Gateway.Name(),
			"error":    err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if gatewayID == "" {
		gatewayID = "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	}

	o := Order{
		OrderID:   gatewayID,
		JobID:     b.ID,
		UserID:    userID,
		Provider:  s.Gateway.Name(),
		Amount:    b.Amount,
		Currency:  b.Currency,
		Status:    StatusCreated,
		CreatedAt: s.now(),
	}
	if err := s.Repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			// Lost a race with a concurrent call for the same job.
			return s.Repo.GetByJob(ctx, jobID)
		}
		return Order{}, err
	}

	metrics.IncPaymentOrderCreated()
	telemetry.Info("payment.order_created", map[string]any{
		"job_id":   o.JobID,
		"order_id": o.OrderID,
		"provider": o.Provider,
		"amount":   o.Amount,
		"currency": o.Currency,
	})
	return o, nil
}

// Capture verifies conf and marks the order and its bundle paid. Repeating a
// capture with the same payment id succeeds without side effects beyond
// re-triggering an unfinished MarkPaid.
func (s *Service) Capture(ctx context.Context, userID string, conf mockpdf.PaymentConfirmation) (Order, error) {
	if strings.TrimSpace(conf.OrderID) == "" || strings.TrimSpace(conf.PaymentID) == "" {
		return Order{}, &mockpdf.ValidationError{Field: "paymentId", Reason: "orderId and paymentId are required"}
	}
	o, err := s.Repo.GetByID(ctx, conf.OrderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrNotFound
	}

	if o.Status == StatusCaptured {
		if o.PaymentID != conf.PaymentID {
			return o, ErrAlreadyCaptured
		}
		return o, s.Bundles.MarkPaid(ctx, o.JobID)
	}

	if !s.Gateway.Verify(conf.OrderID, conf.PaymentID, conf.Signature) {
		metrics.IncPaymentCaptureFailed("invalid_signature")
		telemetry.Error("payment.capture_failed", map[string]any{
			"job_id":     o.JobID,
			"order_id":   o.OrderID,
			"payment_id": conf.PaymentID,
			"amount":     o.Amount,
			"currency":   o.Currency,
			"reason":     "invalid_signature",
		})
		return o, ErrInvalidSignature
	}

	captured, err := s.Repo.MarkCaptured(ctx, o.OrderID, conf.PaymentID, conf.Signature, s.now())
	if err != nil {
		return o, err
	}
	if captured.PaymentID != conf.PaymentID {
		return captured, ErrAlreadyCaptured
	}

	if err := s.Bundles.MarkPaid(ctx, captured.JobID); err != nil {
		metrics.IncPaymentCaptureFailed("mark_paid")
		telemetry.Error("payment.capture_failed", map[string]any{
			"job_id":     captured.JobID,
			"order_id":   captured.OrderID,
			"payment_id": captured.PaymentID,
			"amount":     captured.Amount,
			"currency":   captured.Currency,
			"reason":     "mark_paid",
			"error":      err.Error(),
		})
		return captured, fmt.Errorf("mark request %s paid: %w", captured.JobID, err)
	}

	metrics.IncPaymentCaptured()
	telemetry.Info("payment.captured", map[string]any{
		"job_id":     captured.JobID,
		"order_id":   captured.OrderID,
		"payment_id": captured.PaymentID,
		"amount":     captured.Amount,
	})
	return captured, nil
}
