package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutservice "github.com/lumeven/funnel/internal/checkout/service"
	"github.com/lumeven/funnel/internal/config"
	ledgerservice "github.com/lumeven/funnel/internal/ledger/service"
	paymentdomain "github.com/lumeven/funnel/internal/payment/domain"
	"github.com/lumeven/funnel/internal/ratelimit"
	"github.com/lumeven/funnel/internal/slots"
	"github.com/lumeven/funnel/internal/status"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

type Params struct {
	fx.In

	Engine   *gin.Engine
	Log      *zap.Logger
	Cfg      config.Config
	Checkout *checkoutservice.Service
	Webhook  paymentdomain.Service
	Ledger   *ledgerservice.Service
	Slots    *slots.Counter
	Poller   *status.Poller
	Limiter  *ratelimit.CheckoutLimiter
}

type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	cfg      config.Config
	checkout *checkoutservice.Service
	webhook  paymentdomain.Service
	ledger   *ledgerservice.Service
	slots    *slots.Counter
	poller   *status.Poller
	limiter  *ratelimit.CheckoutLimiter
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		engine:   p.Engine,
		log:      p.Log.Named("http"),
		cfg:      p.Cfg,
		checkout: p.Checkout,
		webhook:  p.Webhook,
		ledger:   p.Ledger,
		slots:    p.Slots,
		poller:   p.Poller,
		limiter:  p.Limiter,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.Use(RequestID())
	s.engine.Use(ErrorHandlingMiddleware())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/checkout/session", s.CreateCheckoutSession)
	api.POST("/checkout/payment", s.ProcessPayment)
	api.GET("/checkout/status", s.PaymentStatus)
	api.GET("/orders", s.GetOrderData)
	api.POST("/orders/complete", s.CompleteRegistration)
	api.GET("/slots/:batch_id", s.GetSlots)

	s.engine.POST("/webhooks/:provider", s.HandlePaymentWebhook)
}

func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
