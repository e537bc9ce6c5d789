// Package app assembles the service graph shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/config"
	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/aggregation"
	"github.com/sangkips/coopmart-api/internal/infrastructure/cache"
	"github.com/sangkips/coopmart-api/internal/infrastructure/database"
	"github.com/sangkips/coopmart-api/internal/infrastructure/messaging"
	"github.com/sangkips/coopmart-api/internal/infrastructure/metrics"
	"github.com/sangkips/coopmart-api/internal/infrastructure/repository"
	"github.com/sangkips/coopmart-api/internal/presentation/http/handler"
	"github.com/sangkips/coopmart-api/internal/presentation/http/routes"
	"github.com/sangkips/coopmart-api/pkg/backoff"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services groups the application services
type Services struct {
	Pricing     *service.PricingService
	Eligibility *service.EligibilityService
	Inventory   *service.InventoryService
	Orders      *service.OrderService
	Imports     *service.ImportService
	Reports     *service.ReportService
	Stock       *service.StockService
	Cycles      *service.CycleService
	Reference   *service.ReferenceService
}

// App owns every long-lived resource
type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Registry *prometheus.Registry
	JWT      *utils.JWTManager
	Services Services

	// IdempotencyKeys stores replayable order submissions
	IdempotencyKeys domainRepo.IdempotencyRepository
	limitStore      cache.LimitStore
	publisher       messaging.Publisher
}

// Options adjusts what Build sets up
type Options struct {
	// Migrate runs auto-migration and reference seeding before services are built
	Migrate bool
}

// Build connects to the backing stores and wires repositories, services and infrastructure
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	db, err := database.NewPostgresDB(&cfg.Database, cfg.App.Debug, log)
	if err != nil {
		return nil, err
	}
	if opts.Migrate {
		if err := Migrate(db, cfg, log); err != nil {
			return nil, err
		}
	}

	a := &App{Cfg: cfg, Log: log, DB: db, JWT: utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiryHours)}

	if cfg.RateLimit.Store == "redis" || cfg.Eligibility.Lock == "redis" {
		a.Redis, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.Registry)

	policy, err := eligibility.PolicyByName(cfg.Eligibility.LoanCeiling)
	if err != nil {
		return nil, err
	}

	var locker cache.MemberLocker = cache.NoopLocker{}
	if cfg.Eligibility.Lock == "redis" {
		locker = cache.NewRedisMemberLocker(a.Redis, cfg.Eligibility.LockTTL, log)
	}

	window := time.Duration(cfg.RateLimit.Duration) * time.Second
	if a.Redis != nil && cfg.RateLimit.Store == "redis" {
		a.limitStore = cache.NewRedisLimitStore(a.Redis, cfg.RateLimit.Requests, window)
	} else {
		a.limitStore = cache.NewMemoryLimitStore(cfg.RateLimit.Requests, window)
	}

	a.publisher = messaging.NewPublisher(&cfg.Messaging, log)

	catalogRepo := repository.NewCatalogRepository(db, cfg.Import.ChunkSize)
	memberRepo := repository.NewMemberRepository(db, cfg.Import.ChunkSize)
	orderRepo := repository.NewOrderRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	reportRepo := repository.NewReportRepository(db)
	a.IdempotencyKeys = repository.NewIdempotencyRepository(db)

	var aggregator aggregation.Aggregator
	switch cfg.Report.Source {
	case "http":
		if cfg.Report.UpstreamURL == "" {
			return nil, fmt.Errorf("REPORT_UPSTREAM_URL is required when REPORT_SOURCE=http")
		}
		aggregator = aggregation.NewHTTPAggregator(cfg.Report.UpstreamURL, cfg.Report.UpstreamAPIKey, cfg.Report.Timeout)
	default:
		aggregator = aggregation.NewDBAggregator(reportRepo)
	}

	pricing := service.NewPricingService(catalogRepo)
	elig := service.NewEligibilityService(memberRepo, orderRepo, policy)
	a.Services = Services{
		Pricing:     pricing,
		Eligibility: elig,
		Inventory:   service.NewInventoryService(catalogRepo, orderRepo, cfg.Inventory.LowStockThreshold),
		Orders: service.NewOrderService(orderRepo, memberRepo, catalogRepo, inventoryRepo,
			pricing, elig, locker, a.publisher, m, log),
		Imports: service.NewImportService(memberRepo, catalogRepo, inventoryRepo, m, log),
		Reports: service.NewReportService(catalogRepo, reportRepo, aggregator, service.ReportOptions{
			Timeout: cfg.Report.Timeout,
			Pacing:  cfg.Report.Pacing,
			Backoff: backoff.Policy{
				Base:        cfg.Report.BackoffBase,
				Max:         cfg.Report.BackoffMax,
				MaxAttempts: cfg.Report.MaxAttempts,
			},
		}, m, log),
		Stock:     service.NewStockService(catalogRepo, inventoryRepo),
		Cycles:    service.NewCycleService(inventoryRepo),
		Reference: service.NewReferenceService(catalogRepo, memberRepo),
	}

	log.Info("application wired",
		zap.String("loan_ceiling", policy.Name()),
		zap.String("report_source", cfg.Report.Source),
		zap.String("rate_limit_store", cfg.RateLimit.Store),
		zap.Bool("messaging", cfg.Messaging.Enabled),
	)
	return a, nil
}

// Migrate runs auto-migration and seeds reference data
func Migrate(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	if err := database.AutoMigrate(db, log); err != nil {
		return err
	}
	return database.SeedDefaultData(db, database.SeedOptions{
		Branches:    cfg.Seed.Branches,
		Departments: cfg.Seed.Departments,
	}, log)
}

// Router builds the HTTP router over the wired services
func (a *App) Router() *gin.Engine {
	s := a.Services
	handlers := &routes.Handlers{
		Order:     handler.NewOrderHandler(s.Orders),
		Inventory: handler.NewInventoryHandler(s.Inventory, s.Stock, s.Cycles),
		Member:    handler.NewMemberHandler(s.Eligibility, s.Reference),
		Pricing:   handler.NewPricingHandler(s.Pricing),
		Import:    handler.NewImportHandler(s.Imports, a.Cfg.Import.MaxUploadSize),
		Report:    handler.NewReportHandler(s.Reports),
		Reference: handler.NewReferenceHandler(s.Reference),
	}
	return routes.Setup(handlers, &routes.Deps{
		JWTManager:      a.JWT,
		Cfg:             a.Cfg,
		IdempotencyRepo: a.IdempotencyKeys,
		LimitStore:      a.limitStore,
		Gatherer:        a.Registry,
		Log:             a.Log,
		Ping:            a.Ping,
	})
}

// Ping checks the database connection
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases connections in reverse order of acquisition
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Log.Warn("failed to close publisher", zap.Error(err))
		}
	}
	if closer, ok := a.limitStore.(interface{ Close() }); ok {
		closer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
