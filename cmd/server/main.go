package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/groceryshare/backend/docs"
	"github.com/groceryshare/backend/internal/bootstrap"
	"github.com/groceryshare/backend/internal/infrastructure/auth"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/groceryshare/backend/internal/infrastructure/logger"
	"github.com/groceryshare/backend/internal/interfaces/http/handler"
	"github.com/groceryshare/backend/internal/interfaces/http/middleware"
	"github.com/groceryshare/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//	@title			Grocery Share API
//	@version		1.0
//	@description	Volunteer grocery delivery: recipients post pickup requests, vetted volunteers claim them.
//	@description	A recipient's address and phone are shown only to the volunteer holding the claim.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting grocery share backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := infra.Close(closeCtx); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	log = infra.Logger

	services := infra.Services()
	jwtService := auth.NewJWTService(cfg.JWT)
	middleware.SetupValidator()

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}

	engine, err := newEngine(cfg, infra, services, jwtService, limiter)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}

func newEngine(
	cfg *config.Config,
	infra *bootstrap.Infra,
	services *bootstrap.Services,
	jwtService *auth.JWTService,
	limiter *middleware.RateLimiter,
) (*gin.Engine, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpMetrics, err := middleware.HTTPMetrics(infra.Meter())
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	tracingEnabled := infra.Telemetry.Tracer.IsEnabled()
	engineCfg := router.EngineConfig{
		Outer: []gin.HandlerFunc{
			middleware.RequestID(),
			middleware.Tracing(cfg.Telemetry.ServiceName, tracingEnabled),
			logger.GinMiddleware(infra.Logger),
			logger.Recovery(infra.Logger),
			middleware.Secure(),
			middleware.CORSWithConfig(cors),
			middleware.BodyLimit(cfg.HTTP.MaxBodySize),
			httpMetrics,
			middleware.Profiling(infra.Telemetry.Profiler.IsEnabled()),
		},
		API: []gin.HandlerFunc{
			middleware.JWTAuthMiddleware(jwtService),
			middleware.TracingAttributeInjector(),
			middleware.SpanErrorMarker(),
		},
	}
	if limiter != nil {
		engineCfg.API = append(engineCfg.API, middleware.RateLimit(limiter))
	}
	if cfg.Swagger.Enabled {
		engineCfg.Docs = middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.JWTAuthMiddleware(jwtService))
	}

	engine := router.NewEngine(engineCfg, handlers(infra, services))
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	return engine, nil
}

func handlers(infra *bootstrap.Infra, s *bootstrap.Services) router.Handlers {
	checks := []handler.HealthCheck{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := infra.DB.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if infra.Redis != nil {
		checks = append(checks, handler.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return infra.Redis.Ping(ctx).Err()
			},
		})
	}

	return router.Handlers{
		Delivery:  handler.NewDeliveryHandler(s.Claims, s.Views),
		Message:   handler.NewMessageHandler(s.Messages, s.Ratings),
		Recipient: handler.NewRecipientHandler(s.Profiles, s.Retention),
		Volunteer: handler.NewVolunteerHandler(s.Vetting),
		Audit:     handler.NewAuditHandler(s.Audit),
		System:    handler.NewSystemHandler(version, checks...),
	}
}
