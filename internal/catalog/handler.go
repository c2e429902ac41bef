package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

// Handler serves the design catalog.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches catalog routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog/designs", h.searchDesigns)
}

type designResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CategoryID string    `json:"categoryId,omitempty"`
	Price      int64     `json:"price"`
	MediaURL   string    `json:"mediaUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *Handler) searchDesigns(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "page must be a positive integer", nil)
		return
	}
	pageSize, err := intQuery(c, "pageSize", DefaultPageSize)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "pageSize must be a positive integer", nil)
		return
	}

	result, err := h.Repo.Search(c.Request.Context(), Query{
		Text:       c.Query("q"),
		CategoryID: c.Query("category"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			respond.Error(c, http.StatusRequestTimeout, "request_cancelled", "request cancelled", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load designs", nil)
		return
	}

	items := make([]designResponse, 0, len(result.Items))
	for _, d := range result.Items {
		items = append(items, designResponse{
			ID:         d.ID,
			Title:      d.Title,
			CategoryID: d.CategoryID,
			Price:      d.Price,
			MediaURL:   d.MediaURL,
			CreatedAt:  d.CreatedAt,
		})
	}
	respond.OK(c, gin.H{
		"items":   items,
		"page":    result.Page,
		"hasMore": result.HasMore,
	})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
