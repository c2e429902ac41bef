package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/bundles"
	"github.com/WeDesignz/WebApp-sub000/internal/catalog"
	"github.com/WeDesignz/WebApp-sub000/internal/entitlements"
	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/payments"
	"github.com/WeDesignz/WebApp-sub000/internal/queue"
	"github.com/WeDesignz/WebApp-sub000/internal/services/health"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/auth"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/middleware"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/db"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/object"
	localstore "github.com/WeDesignz/WebApp-sub000/internal/shared/storage/object/local"
	s3store "github.com/WeDesignz/WebApp-sub000/internal/shared/storage/object/s3"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// demoCatalogSize is how many designs seed the in-memory catalog.
const demoCatalogSize = 240

// App holds shared dependencies and the configured router.
type App struct {
	Config              config.Config
	Router              *gin.Engine
	DB                  *sql.DB
	Store               object.ObjectStore
	Queue               queue.Client
	Events              events.Broadcaster
	CatalogRepo         catalog.Repo
	EntitlementsService *entitlements.Service
	BundlesService      *bundles.Service
	PaymentsService     *payments.Service
	Health              *health.Service

	closers []func() error
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	checks := map[string]health.Check{}
	if sqlDB != nil {
		checks["database"] = sqlDB.PingContext
	}
	broadcaster, err := buildEvents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var limiter middleware.Limiter
	if r, ok := broadcaster.(*events.Redis); ok {
		checks["redis"] = r.Ping
		app.closers = append(app.closers, r.Close)
		limiter = middleware.NewRedisLimiter(r.Client(), "")
	}
	app.Events = broadcaster
	app.Health = health.NewService(checks)

	if err := buildServices(app); err != nil {
		return nil, err
	}

	keys, err := auth.KeysFromEnv()
	if err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:              app.Config,
		Health:              app.Health,
		CatalogHandler:      catalog.NewHandler(app.CatalogRepo),
		EntitlementsHandler: entitlements.NewHandler(app.EntitlementsService),
		BundlesHandler:      bundles.NewHandler(app.BundlesService),
		PaymentsHandler:     payments.NewHandler(app.PaymentsService),
		EventsHandler:       events.NewHandler(app.Events, cfg.CORSAllowOrigin),
		RateLimiter:         limiter,
		Tokens:              keys,
	})

	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if config.IsDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
}

func buildEvents(ctx context.Context, cfg config.Config) (events.Broadcaster, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return events.NewMemory(), nil
	}
	r, err := events.Dial(ctx, cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_events", map[string]any{"error": err.Error()})
			return events.NewMemory(), nil
		}
		return nil, err
	}
	return r, nil
}

func buildGateway(cfg config.Config) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case "razorpay":
		return payments.NewRazorpayGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret)
	default:
		secret := cfg.PaymentKeySecret
		if secret == "" {
			if !config.IsDevLike(cfg.Env) {
				return nil, fmt.Errorf("PAYMENT_KEY_SECRET is required outside dev")
			}
			secret = "local-dev-secret"
		}
		return payments.LocalGateway{Secret: secret}, nil
	}
}

func buildServices(app *App) error {
	cfg := app.Config
	policy := entitlements.PolicyFromConfig(cfg.MockPDF)

	var (
		catalogRepo      catalog.Repo
		entitlementStore entitlements.Store
		bundleRepo       bundles.Repo
		paymentRepo      payments.Repo
	)
	if app.DB != nil {
		catalogRepo = &catalog.PGRepo{DB: app.DB}
		entitlementStore = entitlements.NewPGStore(app.DB, policy)
		bundleRepo = &bundles.PGRepo{DB: app.DB}
		paymentRepo = &payments.PGRepo{DB: app.DB}
	} else {
		catalogRepo = catalog.NewMemoryRepo(catalog.DemoDesigns(demoCatalogSize)...)
		entitlementStore = entitlements.NewMemoryStore(policy)
		bundleRepo = bundles.NewMemoryRepo()
		paymentRepo = payments.NewMemoryRepo()
	}

	entitlementSvc, err := entitlements.NewService(entitlementStore, entitlements.PriceTableFromConfig(cfg.MockPDF))
	if err != nil {
		return fmt.Errorf("mock-pdf pricing: %w", err)
	}

	bundleSvc := &bundles.Service{
		Repo:         bundleRepo,
		Catalog:      catalogRepo,
		Entitlements: entitlementSvc,
		Store:        app.Store,
		Events:       app.Events,
		Queue:        app.Queue,
	}

	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	app.CatalogRepo = catalogRepo
	app.EntitlementsService = entitlementSvc
	app.BundlesService = bundleSvc
	app.PaymentsService = &payments.Service{
		Repo:    paymentRepo,
		Gateway: gateway,
		Bundles: bundleSvc,
	}
	return nil
}
