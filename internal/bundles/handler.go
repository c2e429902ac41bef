package bundles

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/util"
)

// Handler wires HTTP handlers to the bundle service.
type Handler struct {
	Svc         *Service
	pollLimiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, pollLimiter: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches bundle routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/mock-pdf/requests", h.createRequest)
	rg.GET("/mock-pdf/requests", h.listRequests)
	rg.GET("/mock-pdf/requests/:id", h.getRequest)
	rg.GET("/mock-pdf/requests/:id/download", h.download)
}

type createRequestBody struct {
	Strategy                 string   `json:"strategy"`
	RequiredCount            int      `json:"requiredCount"`
	ProductIDs               []string `json:"productIds"`
	IsFree                   bool     `json:"isFree"`
	UseSubscriptionAllowance bool     `json:"useSubscriptionAllowance"`
	CustomerName             string   `json:"customerName"`
	CustomerContact          string   `json:"customerContact"`
}

func (h *Handler) createRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	b, err := h.Svc.Create(ctx, middleware.UserIDFromContext(c), CreateInput{
		Strategy:                 body.Strategy,
		RequiredCount:            body.RequiredCount,
		ProductIDs:               body.ProductIDs,
		IsFree:                   body.IsFree,
		UseSubscriptionAllowance: body.UseSubscriptionAllowance,
		CustomerName:             body.CustomerName,
		CustomerContact:          body.CustomerContact,
	})
	if err != nil {
		writeCreateError(c, err)
		return
	}

	c.Set(middleware.JobIDKey, b.ID)
	c.Set(middleware.StatusTransitionKey, "->"+string(b.Status))
	respond.Created(c, mockpdf.CreatedJob{
		JobID:    b.ID,
		Status:   b.Status,
		IsFree:   b.IsFree,
		Amount:   b.Amount,
		Currency: b.Currency,
	})
}

func writeCreateError(c *gin.Context, err error) {
	var (
		validation *mockpdf.ValidationError
		mismatch   *EntitlementMismatchError
		unknown    *UnknownDesignsError
	)
	switch {
	case errors.As(err, &validation):
		respond.Error(c, http.StatusBadRequest, "validation_error", validation.Error(), []map[string]string{
			{"field": validation.Field, "issue": validation.Reason},
		})
	case errors.As(err, &mismatch):
		respond.Error(c, http.StatusConflict, "entitlement_mismatch", "Your free download eligibility has changed. Please review the price and try again.", gin.H{
			"claimedIsFree": mismatch.Claimed,
			"isFree":        mismatch.Actual,
		})
	case errors.As(err, &unknown):
		respond.Error(c, http.StatusBadRequest, "unknown_designs", "Some selected designs are no longer available.", gin.H{"productIds": unknown.IDs})
	case errors.Is(err, mockpdf.ErrNotAuthenticated):
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to download designs", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "request_cancelled", "request cancelled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create request", nil)
	}
}

func (h *Handler) getRequest(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)

	if !h.pollLimiter.Allow(userID, id) {
		retryAfter := h.pollLimiter.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Polling too fast", gin.H{"retryAfterSeconds": retryAfter})
		return
	}

	b, err := h.Svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "request not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch request", nil)
		return
	}
	respond.OK(c, b.Job())
}

type listItem struct {
	mockpdf.Job
	Strategy  mockpdf.Strategy `json:"strategy"`
	Count     int              `json:"count"`
	IsFree    bool             `json:"isFree"`
	Amount    int64            `json:"amount"`
	Currency  string           `json:"currency"`
	Paid      bool             `json:"paid"`
	PageCount int              `json:"pageCount,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (h *Handler) listRequests(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	list, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list requests", nil)
		return
	}

	items := make([]listItem, 0, len(list))
	for _, b := range list {
		items = append(items, listItem{
			Job:       b.Job(),
			Strategy:  b.Strategy,
			Count:     b.RequiredCount,
			IsFree:    b.IsFree,
			Amount:    b.Amount,
			Currency:  b.Currency,
			Paid:      b.Paid,
			PageCount: b.PageCount,
			CreatedAt: b.CreatedAt,
		})
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.JobIDKey, id)

	b, obj, err := h.Svc.OpenDownload(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "request not found", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "Your PDF is not ready yet", gin.H{"status": b.Status})
		case errors.Is(err, ErrArtifactMissing):
			respond.Error(c, http.StatusGone, "artifact_missing", "This PDF is no longer available", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open download", nil)
		}
		return
	}
	defer obj.Body.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="`+util.AttachmentName(b.ID)+`"`)
	c.Header("Cache-Control", "private, no-store")
	if obj.Size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		telemetry.Warn("bundle.download_copy_failed", map[string]any{"job_id": b.ID, "error": err.Error()})
	}
}
