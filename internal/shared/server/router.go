package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/catalog"
	"github.com/WeDesignz/WebApp-sub000/internal/entitlements"
	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/payments"
	"github.com/WeDesignz/WebApp-sub000/internal/services/health"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/metrics"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
)

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config              config.Config
	Health              *health.Service
	CatalogHandler      *catalog.Handler
	EntitlementsHandler *entitlements.Handler
	BundlesHandler      *bundles.Handler
	PaymentsHandler     *payments.Handler
	EventsHandler       *events.Handler
	RateLimiter         middleware.Limiter
	Tokens              middleware.TokenVerifier
}

const (
	rateGroupCreate  = "CREATE"
	rateGroupPayment = "PAYMENT"
)

var rateLimitGroups = map[string]string{
	"POST /api/v1/mock-pdf/requests":                   rateGroupCreate,
	"POST /api/v1/mock-pdf/requests/:id/payment-order": rateGroupPayment,
	"POST /api/v1/mock-pdf/payments/capture":           rateGroupPayment,
}

var rateLimitRules = map[string]middleware.RateLimitRule{
	rateGroupCreate:  {Rate: 0.2, Burst: 5},
	rateGroupPayment: {Rate: 0.5, Burst: 10},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Tokens),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateLimitRules,
			GroupFor: middleware.GroupByRoute(rateLimitGroups),
			Limiter:  deps.RateLimiter,
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		checks, ok := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	if deps.CatalogHandler != nil {
		deps.CatalogHandler.RegisterRoutes(api)
	}

	mock := api.Group("", middleware.RequireUser())
	if deps.EntitlementsHandler != nil {
		deps.EntitlementsHandler.RegisterRoutes(mock)
	}
	if deps.BundlesHandler != nil {
		deps.BundlesHandler.RegisterRoutes(mock)
	}
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterRoutes(mock)
	}
	if deps.EventsHandler != nil {
		deps.EventsHandler.RegisterRoutes(mock)
	}

	if config.IsDevLike(deps.Config.Env) && deps.EntitlementsHandler != nil {
		dev := api.Group("/dev", middleware.RequireUser())
		deps.EntitlementsHandler.RegisterDevRoutes(dev)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
