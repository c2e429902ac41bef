package entitlements

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

// Handler exposes eligibility and pricing endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches entitlement routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mock-pdf/eligibility", h.getEligibility)
	rg.GET("/mock-pdf/pricing", h.getPricing)
}

// RegisterDevRoutes attaches dev-only entitlement routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/mock-pdf/entitlements/reset", h.reset)
}

func (h *Handler) getEligibility(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeStoreError(c, err, "failed to load eligibility")
		return
	}
	snap := rec.Snapshot()
	respond.OK(c, gin.H{
		"isFreeEligible":                 snap.IsFreeEligible,
		"subscriptionAllowanceRemaining": snap.SubscriptionAllowanceRemaining,
		"periodEnd":                      rec.PeriodEnd,
	})
}

func (h *Handler) getPricing(c *gin.Context) {
	respond.OK(c, h.Svc.Prices())
}

func (h *Handler) reset(c *gin.Context) {
	rec, err := h.Svc.Reset(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeStoreError(c, err, "failed to reset entitlements")
		return
	}
	respond.OK(c, rec)
}

func writeStoreError(c *gin.Context, err error, msg string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respond.Error(c, http.StatusRequestTimeout, "request_cancelled", "request cancelled", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
}
