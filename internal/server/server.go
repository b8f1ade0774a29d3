// Package server exposes the HTTP surface: quoting, payment execution,
// access checks and the chain/tier catalogs.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/solacehealth/solace/internal/access"
	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/config"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
	"github.com/solacehealth/solace/internal/observability"
	obsmiddleware "github.com/solacehealth/solace/internal/observability/logger"
	obstracing "github.com/solacehealth/solace/internal/observability/tracing"
	paymentdomain "github.com/solacehealth/solace/internal/payment/domain"
	paymentservice "github.com/solacehealth/solace/internal/payment/service"
	"github.com/solacehealth/solace/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	registerValidations()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	healthz := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", healthz)
	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("session_type", func(fl validator.FieldLevel) bool {
		switch access.SessionType(fl.Field().String()) {
		case access.SessionIndividual, access.SessionGroup, access.SessionEmergency:
			return true
		default:
			return false
		}
	})
	_ = v.RegisterValidation("payment_type", func(fl validator.FieldLevel) bool {
		return paymentdomain.PaymentType(fl.Field().String()).Valid()
	})
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	chains       *chain.Registry
	payments     *paymentservice.Service
	entitlements entdomain.Service
	accessSvc    *access.Service
	limiter      *ratelimit.PaymentLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	Chains       *chain.Registry
	Payments     *paymentservice.Service
	Entitlements entdomain.Service
	AccessSvc    *access.Service
	Limiter      *ratelimit.PaymentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		chains:       p.Chains,
		payments:     p.Payments,
		entitlements: p.Entitlements,
		accessSvc:    p.AccessSvc,
		limiter:      p.Limiter,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Catalog --------
	v1.GET("/chains", s.ListChains)
	v1.GET("/tiers", s.ListTiers)

	// -------- Payments --------
	v1.POST("/payments/quote", s.CreateQuote)
	v1.POST("/payments/eligibility", s.CheckAffordability)
	v1.POST("/payments", s.CreatePayment)
	v1.GET("/payments/:reference", s.GetPaymentByReference)
	v1.GET("/chains/:chain_id/balances/:address", s.GetBalances)

	// -------- Users --------
	v1.GET("/users/:user_id/access", s.GetUserAccess)
	v1.GET("/users/:user_id/payments", s.ListUserPayments)
	v1.GET("/users/:user_id/usage", s.ListUsageHistory)

	// -------- Sessions --------
	v1.POST("/bookings/eligibility", s.CheckBookingEligibility)
	v1.POST("/sessions/consume", s.ConsumeSessionMinutes)
}
