package payments

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

// Handler exposes order creation and capture.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches payment routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/mock-pdf/requests/:id/payment-order", h.createOrder)
	rg.POST("/mock-pdf/payments/capture", h.capture)
}

type createOrderBody struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) createOrder(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)

	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := bundles.WithRequestID(c.Request.Context(), c.GetString("requestId"))
	o, err := h.Svc.CreateOrder(ctx, middleware.UserIDFromContext(c), id, body.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, o.Wire(h.Svc.Gateway.KeyID()))
}

func (h *Handler) capture(c *gin.Context) {
	var body mockpdf.PaymentConfirmation
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := bundles.WithRequestID(c.Request.Context(), c.GetString("requestId"))
	o, err := h.Svc.Capture(ctx, middleware.UserIDFromContext(c), body)
	if o.JobID != "" {
		c.Set(middleware.JobIDKey, o.JobID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, "paid")
	respond.OK(c, o.Wire(h.Svc.Gateway.KeyID()))
}

func writeError(c *gin.Context, err error) {
	var validation *mockpdf.ValidationError
	switch {
	case errors.As(err, &validation):
		respond.Error(c, http.StatusBadRequest, "validation_error", validation.Error(), []map[string]string{
			{"field": validation.Field, "issue": validation.Reason},
		})
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "request not found", nil)
	case errors.Is(err, ErrNotPayable):
		respond.Error(c, http.StatusConflict, "not_payable", "This request does not need payment", nil)
	case errors.Is(err, ErrAlreadyPaid):
		respond.Error(c, http.StatusConflict, "already_paid", "This request is already paid", nil)
	case errors.Is(err, ErrAlreadyCaptured):
		respond.Error(c, http.StatusConflict, "already_captured", "This order was paid with a different payment", nil)
	case errors.Is(err, ErrAmountMismatch):
		respond.Error(c, http.StatusConflict, "amount_mismatch", "The price for this request has changed", nil)
	case errors.Is(err, ErrInvalidSignature):
		respond.Error(c, http.StatusBadRequest, "invalid_signature", "Payment could not be verified", nil)
	case errors.Is(err, ErrGateway):
		respond.Error(c, http.StatusBadGateway, "gateway_error", "Payment provider is unavailable", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "request_cancelled", "request cancelled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "payment failed", nil)
	}
}
