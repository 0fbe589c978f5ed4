// Package server exposes the HTTP surface over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sublyhq/subly/internal/balance"
	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	"github.com/sublyhq/subly/internal/certificate"
	certificatedomain "github.com/sublyhq/subly/internal/certificate/domain"
	"github.com/sublyhq/subly/internal/config"
	"github.com/sublyhq/subly/internal/events"
	"github.com/sublyhq/subly/internal/oracle"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	"github.com/sublyhq/subly/internal/payment"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
	"github.com/sublyhq/subly/internal/protocol"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	"github.com/sublyhq/subly/internal/provider"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	"github.com/sublyhq/subly/internal/stakepool"
	"github.com/sublyhq/subly/internal/subscription"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
	"github.com/sublyhq/subly/internal/vault"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	protocol.Module,
	vault.Module,
	oracle.Module,
	stakepool.Module,
	balance.Module,
	provider.Module,
	subscription.Module,
	payment.Module,
	events.Module,
	certificate.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
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
	engine          *gin.Engine
	cfg             config.Config
	protocolSvc     protocoldomain.Service
	balanceSvc      balancedomain.Service
	providerSvc     providerdomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	oracleSvc       oracledomain.Service
	certificateSvc  certificatedomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	ProtocolSvc     protocoldomain.Service
	BalanceSvc      balancedomain.Service
	ProviderSvc     providerdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	OracleSvc       oracledomain.Service
	CertificateSvc  certificatedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		protocolSvc:     p.ProtocolSvc,
		balanceSvc:      p.BalanceSvc,
		providerSvc:     p.ProviderSvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		oracleSvc:       p.OracleSvc,
		certificateSvc:  p.CertificateSvc,
	}

	svc.registerProtocolRoutes()
	svc.registerBalanceRoutes()
	svc.registerProviderRoutes()
	svc.registerSubscriptionRoutes()
	svc.registerPaymentRoutes()

	return svc
}
