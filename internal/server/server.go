package server

import (
	"context"
	"net/http"
	"time"

	"github.com/brushline/leadrail/internal/analytics"
	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/config"
	deliverydomain "github.com/brushline/leadrail/internal/delivery/domain"
	dripdomain "github.com/brushline/leadrail/internal/drip/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	obsmetrics "github.com/brushline/leadrail/internal/observability/metrics"
	obstracing "github.com/brushline/leadrail/internal/observability/tracing"
	"github.com/brushline/leadrail/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(metrics *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	leadSvc     leaddomain.Service
	buyerSvc    buyerdomain.Service
	billingSvc  billingdomain.Service
	deliverySvc deliverydomain.Service
	dripSvc     dripdomain.Service
	tracker     *analytics.Tracker
	limiter     *ratelimit.IntakeLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	LeadSvc     leaddomain.Service
	BuyerSvc    buyerdomain.Service
	BillingSvc  billingdomain.Service
	DeliverySvc deliverydomain.Service
	DripSvc     dripdomain.Service
	Tracker     *analytics.Tracker
	Limiter     *ratelimit.IntakeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		leadSvc:     p.LeadSvc,
		buyerSvc:    p.BuyerSvc,
		billingSvc:  p.BillingSvc,
		deliverySvc: p.DeliverySvc,
		dripSvc:     p.DripSvc,
		tracker:     p.Tracker,
		limiter:     p.Limiter,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterInternalRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// Intake is the only unauthenticated route.
	v1.POST("/leads", s.SubmitLead)

	admin := v1.Group("", s.AdminRequired())
	admin.GET("/leads", s.ListLeads)
	admin.GET("/leads/:id", s.GetLead)
	admin.POST("/leads/:id/status", s.UpdateLeadStatus)
	admin.GET("/leads/:id/deliveries", s.ListLeadDeliveries)

	admin.POST("/buyers", s.CreateBuyer)
	admin.GET("/buyers", s.ListBuyers)
	admin.GET("/buyers/:id", s.GetBuyer)
	admin.PATCH("/buyers/:id", s.UpdateBuyer)
	admin.POST("/buyers/:id/fund", s.FundBuyer)

	admin.GET("/billing/transactions", s.ListTransactions)
	admin.POST("/billing/refund", s.Refund)
	admin.POST("/billing/low-balance/check", s.CheckLowBalances)

	admin.GET("/analytics/events", s.ListAnalyticsEvents)
}

func (s *Server) RegisterInternalRoutes() {
	internal := s.engine.Group("/internal", s.InternalRequired())
	internal.POST("/drip/process", s.ProcessDrip)
}
