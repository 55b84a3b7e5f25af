package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/gympass/docs"
	"github.com/fatflowers/gympass/internal/app/api/handlers"
	mw "github.com/fatflowers/gympass/internal/app/api/middleware"
	"github.com/fatflowers/gympass/internal/app/service/auditlog"
	"github.com/fatflowers/gympass/internal/app/service/catalog"
	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/feedback"
	"github.com/fatflowers/gympass/internal/app/service/identity"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/statistics"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/platform/firebase"
	stripeclient "github.com/fatflowers/gympass/internal/platform/stripe"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/metrics"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env != cfgpkg.EnvDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(), mw.CORSMiddleware(cfg))
	return r
}

type RouteParams struct {
	fx.In

	Lc       fx.Lifecycle
	Engine   *gin.Engine
	Cfg      *cfgpkg.Config
	Log      *zap.SugaredLogger
	DB       *gorm.DB
	Verifier *firebase.Verifier
	Catalog  *catalog.Catalog
	Checkout *checkout.Service
	Subs     *subscription.Engine
	Members  *member.Service
	Hub      *member.Hub
	Identity *identity.Service
	Feedback *feedback.Service
	Stats    *statistics.Service
	Audit    *auditlog.Service
	Stripe   *stripeclient.Client
}

func registerRoutes(p RouteParams) {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	if cfg.MetricsAddr != "" {
		metrics.RegisterBusinessMetrics()
		prom := metrics.NewPrometheus(nil, log)
		r.Use(prom.HandlerFunc())
		p.Lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				prom.Serve(cfg.MetricsAddr, nil)
				log.Infow("metrics started", "addr", cfg.MetricsAddr)
				return nil
			},
			OnStop: prom.Shutdown,
		})
	}

	logged := []gin.HandlerFunc{mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware()}

	pub := r.Group("/", logged...)
	handlers.RegisterHealthRoutes(pub, func(ctx context.Context) error {
		sqlDB, err := p.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	// browser return from the hosted checkout
	handlers.RegisterReturnRoutes(pub, cfg, p.Subs, p.Audit, log)

	apiV1 := r.Group("/api/v1", logged...)
	handlers.RegisterPlanRoutes(apiV1, p.Catalog)

	authed := apiV1.Group("", mw.AuthMiddleware(p.Verifier, cfg, log))
	handlers.RegisterCheckoutRoutes(authed, p.Checkout, p.Subs, p.Audit, log)
	handlers.RegisterMemberRoutes(authed, p.Members, p.Identity, p.Hub, log)
	handlers.RegisterFeedbackRoutes(authed, p.Feedback)

	admin := authed.Group("/admin", mw.AdminMiddleware(cfg))
	handlers.RegisterAdminRoutes(admin, p.Members, p.Stats, p.Subs)

	apiV2Payment := r.Group("/api/v2/payment", logged...)
	handlers.RegisterPaymentWebhookRoutes(apiV2Payment, p.Stripe, p.Subs, p.Audit, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// no WriteTimeout: /api/v1/me/events streams
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
