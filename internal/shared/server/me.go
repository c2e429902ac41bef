package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

type meResponse struct {
	UserID        string `json:"userId"`
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	// CanDownload is false for guests; mock-PDF routes answer them with login_required.
	CanDownload bool `json:"canDownload"`
}

func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		authed := middleware.IsAuthenticated(c)
		respond.OK(c, meResponse{
			UserID:        userID,
			Authenticated: authed,
			Email:         middleware.UserEmailFromContext(c),
			Name:          middleware.UserNameFromContext(c),
			CanDownload:   authed,
		})
	})
}
