package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/ledger"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/reports"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/http/v1/dto"
	"prodledger/internal/infrastructure/http/v1/handlers"
	"prodledger/internal/infrastructure/http/v1/middleware"
	"prodledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Development keeps gin in debug mode.
	Development bool

	// RequestTimeout bounds every API request. Zero disables it.
	RequestTimeout time.Duration

	// ActorValidator checks bearer tokens. When nil, the actor is taken
	// from the X-Actor-ID header.
	ActorValidator middleware.ActorValidator

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency middleware.IdempotencyStore

	// Metrics observes requests; MetricsHandler serves /metrics. Both optional.
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler

	Health handlers.HealthConfig

	Targets    *targets.Service
	Production *production.Service
	Ledger     *ledger.Service
	Reports    *reports.Service
	Lines      *line.Service
	Styles     *style.Service

	// History serves audit trails; nil disables the history routes.
	History audit.Reader
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!). Recovery sits inside Logger and
	// Metrics so a panicked request is still logged and counted as a 500.
	router.Use(middleware.Trace())
	if cfg.Logger != nil {
		router.Use(middleware.Logger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.ActorValidator != nil {
		api.Use(middleware.Auth(cfg.ActorValidator))
	} else {
		api.Use(middleware.HeaderActor())
	}
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerTargetRoutes(api, base, cfg)
	registerProductionRoutes(api, base, cfg)
	registerBalanceRoutes(api, base, cfg)
	registerReportRoutes(api, base, cfg)
	registerCatalogRoutes(api, base, cfg)

	return router
}

func registerTargetRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewTargetsHandler(base, cfg.Targets, cfg.History)

	g := rg.Group("/targets")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.POST("/bulk-delete", h.BulkDelete)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Replace)
	g.DELETE("/:id", h.Delete)
	if cfg.History != nil {
		g.GET("/:id/history", h.History)
	}
}

func registerProductionRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewProductionHandler(base, cfg.Production, cfg.History)

	g := rg.Group("/production-entries")
	g.POST("", h.Add)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Correct)
	if cfg.History != nil {
		g.GET("/:id/history", h.History)
	}
}

func registerBalanceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewBalancesHandler(base, cfg.Ledger)

	g := rg.Group("/balances")
	g.GET("", h.List)
	g.GET("/:styleCode", h.Get)
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewReportsHandler(base, cfg.Reports)

	g := rg.Group("/reports")
	g.GET("/daily-rollup", h.DailyRollup)
	g.GET("/daily-rollup/export", h.ExportDailyRollup)
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")

	RegisterCatalogRoutes(catalogs.Group("/lines"),
		handlers.NewCatalogHandler(base, cfg.Lines.CatalogService, dto.CreateLineRequest.ToLine))
	RegisterCatalogRoutes(catalogs.Group("/styles"),
		handlers.NewCatalogHandler(base, cfg.Styles.CatalogService, dto.CreateStyleRequest.ToStyle))
}
