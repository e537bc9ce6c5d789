package routes

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sangkips/coopmart-api/internal/config"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/cache"
	"github.com/sangkips/coopmart-api/internal/presentation/http/handler"
	"github.com/sangkips/coopmart-api/internal/presentation/http/middleware"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Order     *handler.OrderHandler
	Inventory *handler.InventoryHandler
	Member    *handler.MemberHandler
	Pricing   *handler.PricingHandler
	Import    *handler.ImportHandler
	Report    *handler.ReportHandler
	Reference *handler.ReferenceHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	LimitStore      cache.LimitStore
	Gatherer        prometheus.Gatherer
	Log             *zap.Logger
	// Ping reports backing store health for /health; nil means always healthy
	Ping            func(ctx context.Context) error
}

var (
	anyRole   = []identity.Role{identity.RoleMember, identity.RoleRep, identity.RoleAdmin}
	staff     = []identity.Role{identity.RoleRep, identity.RoleAdmin}
	adminOnly = []identity.Role{identity.RoleAdmin}

	fieldNames sync.Once
)

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	fieldNames.Do(registerJSONFieldNames)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Log))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	router.GET("/health", health(deps))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(deps.JWTManager))
	if deps.LimitStore != nil {
		v1.Use(middleware.NewRateLimiter(deps.LimitStore, deps.Log).Middleware())
	}

	registerOrderRoutes(v1, h, deps)
	registerInventoryRoutes(v1, h)
	registerMemberRoutes(v1, h)
	registerPricingRoutes(v1, h)
	registerImportRoutes(v1, h, deps)
	registerReportRoutes(v1, h)
	registerReferenceRoutes(v1, h)

	return router
}

func health(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": deps.Cfg.App.Name})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": deps.Cfg.App.Name})
	}
}

func registerOrderRoutes(v1 *gin.RouterGroup, h *Handlers, deps *Deps) {
	submit := middleware.Idempotency(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo, Log: deps.Log, Required: true})
	retry := middleware.Idempotency(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo, Log: deps.Log})

	orders := v1.Group("/orders")
	{
		orders.GET("", middleware.RequireRole(anyRole...), h.Order.List)
		orders.POST("", middleware.RequireRole(anyRole...), submit, h.Order.Create)
		orders.GET("/:id", middleware.RequireRole(anyRole...), h.Order.Get)
		orders.PUT("/:id/lines", middleware.RequireRole(anyRole...), h.Order.UpdateLines)

		orders.POST("/post", middleware.RequireRole(staff...), retry, h.Order.PostBulk)
		orders.POST("/deliver", middleware.RequireRole(staff...), retry, h.Order.DeliverBulk)
		orders.POST("/:id/post", middleware.RequireRole(staff...), h.Order.Post)
		orders.POST("/:id/deliver", middleware.RequireRole(staff...), h.Order.Deliver)
		orders.POST("/:id/cancel", middleware.RequireRole(staff...), h.Order.Cancel)

		orders.DELETE("/:id", middleware.RequireRole(adminOnly...), h.Order.Delete)
		orders.POST("/:id/annotate", middleware.RequireRole(adminOnly...), h.Order.Annotate)
	}
}

func registerInventoryRoutes(v1 *gin.RouterGroup, h *Handlers) {
	v1.GET("/inventory", middleware.RequireRole(staff...), h.Inventory.Status)

	stock := v1.Group("/stock")
	stock.Use(middleware.RequireRole(staff...))
	{
		stock.POST("/receive", h.Inventory.Receive)
		stock.POST("/adjust", h.Inventory.Adjust)
		stock.GET("/movements", h.Inventory.Movements)
	}

	cycles := v1.Group("/cycles")
	{
		cycles.GET("", middleware.RequireRole(anyRole...), h.Inventory.ListCycles)
		cycles.GET("/active", middleware.RequireRole(anyRole...), h.Inventory.ActiveCycle)
		cycles.POST("", middleware.RequireRole(adminOnly...), h.Inventory.CreateCycle)
		cycles.POST("/:id/activate", middleware.RequireRole(adminOnly...), h.Inventory.ActivateCycle)
	}
}

func registerMemberRoutes(v1 *gin.RouterGroup, h *Handlers) {
	members := v1.Group("/members")
	members.Use(middleware.RequireRole(anyRole...))
	{
		members.GET("/:member_no", h.Member.Get)
		members.GET("/:member_no/eligibility", h.Member.Eligibility)
	}
}

func registerPricingRoutes(v1 *gin.RouterGroup, h *Handlers) {
	v1.GET("/prices", middleware.RequireRole(anyRole...), h.Pricing.ListPrices)

	markups := v1.Group("/markups")
	markups.Use(middleware.RequireRole(adminOnly...))
	{
		markups.PUT("", h.Pricing.UpsertMarkup)
		markups.PATCH("", h.Pricing.SetMarkupActive)
		markups.DELETE("", h.Pricing.DeleteMarkup)
	}
}

func registerImportRoutes(v1 *gin.RouterGroup, h *Handlers, deps *Deps) {
	v1.POST("/imports/:kind",
		middleware.RequireRole(adminOnly...),
		middleware.Idempotency(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo, Log: deps.Log}),
		h.Import.Import,
	)
}

func registerReportRoutes(v1 *gin.RouterGroup, h *Handlers) {
	reports := v1.Group("/reports")
	{
		reports.GET("/demand", middleware.RequireRole(staff...), h.Report.Demand)
		reports.GET("/demand/export", middleware.RequireRole(adminOnly...), h.Report.ExportDemand)
		reports.GET("/items-pack", middleware.RequireRole(adminOnly...), h.Report.ItemsPack)
	}
}

func registerReferenceRoutes(v1 *gin.RouterGroup, h *Handlers) {
	ref := v1.Group("")
	ref.Use(middleware.RequireRole(anyRole...))
	{
		ref.GET("/branches", h.Reference.Branches)
		ref.GET("/departments", h.Reference.Departments)
		ref.GET("/items", h.Reference.Items)
	}
}

// registerJSONFieldNames makes binding errors name fields by their json tag
func registerJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
