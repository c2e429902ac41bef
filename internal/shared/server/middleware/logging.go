package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	JobIDKey            = "jobId"
	StatusTransitionKey = "statusTransition"
)

// quietRoutes are polled by load balancers and only logged at debug.
var quietRoutes = map[string]bool{
	"/api/v1/health":  true,
	"/api/v1/metrics": true,
}

// Logging writes one request.complete line per request. Server errors log at
// error and client errors at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"status":      status,
			"bytes":       c.Writer.Size(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"job_id":      c.GetString(JobIDKey),
			"is_guest":    c.GetBool(isGuestKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if transition := c.GetString(StatusTransitionKey); transition != "" {
			fields["status_transition"] = transition
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		case quietRoutes[route]:
			telemetry.Debug("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
