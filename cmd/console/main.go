package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/golabing/console/api/swagger"
	"github.com/golabing/console/internal/handler"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	"github.com/golabing/console/internal/service"
	"github.com/golabing/console/pkg/cache"
	"github.com/golabing/console/pkg/config"
	"github.com/golabing/console/pkg/database"
	"github.com/golabing/console/pkg/logger"
	"github.com/golabing/console/pkg/sealer"
	"github.com/golabing/console/pkg/signedlink"
)

// @title GoLabing.ai Console API
// @version 1.0.0
// @description Admin console and storefront for the GoLabing.ai lab rental platform
// @BasePath /api/v1
// @schemes http https

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-process stores", zap.Error(err))
		redisClient = nil
	}

	var db *sqlx.DB
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(context.Background(), cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			logr.Fatal("failed to prepare audit schema", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	backend := repository.NewBackendClient(repository.BackendOptions{
		BaseURL:          cfg.Backend.BaseURL,
		Timeout:          cfg.Backend.Timeout,
		BreakerFailures:  cfg.Backend.BreakerFailures,
		BreakerOpenFor:   cfg.Backend.BreakerOpenFor,
		BreakerHalfOpenN: cfg.Backend.BreakerHalfOpenN,
		Observer:         metricsSvc,
	}, logr)

	var auditSvc *service.AuditService
	auditOpts := service.AuditOptions{Workers: cfg.Audit.Workers, MaxRetries: cfg.Audit.MaxRetries, RetryDelay: cfg.Audit.RetryDelay}
	if db != nil {
		auditSvc = service.NewAuditService(repository.NewAuditRepository(db), auditOpts, logr)
	} else {
		auditSvc = service.NewAuditService(nil, auditOpts, logr)
	}

	store, err := newSessionStore(cfg, redisClient)
	if err != nil {
		logr.Fatal("failed to init session store", zap.Error(err))
	}
	sessionSvc := service.NewSessionService(store, repository.NewIdentityRepository(backend), auditSvc, metricsSvc, validate, logr,
		service.SessionConfig{
			Secret:         cfg.Session.Secret,
			TTL:            cfg.Session.TTL,
			ProfileTimeout: cfg.Backend.ProfileTimeout,
		})

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, service.CacheOptions{
		Enabled:    cfg.Catalogue.CacheEnabled,
		DefaultTTL: cfg.Catalogue.CacheTTL,
		LocalSize:  cfg.Catalogue.LocalSize,
	}, logr)

	events := service.NewEventHub(0, metricsSvc, logr)
	catalogueSvc := service.NewCatalogueService(repository.NewCatalogueRepository(backend), cacheSvc, auditSvc, validate, logr)
	cartSvc := service.NewCartService(repository.NewCartRepository(backend), catalogueSvc, events, auditSvc, validate, logr,
		service.CartOptions{CheckoutRedirect: cfg.Checkout.RedirectTemplate})
	signer := signedlink.NewSigner(cfg.Viewer.LinkSecret, cfg.Viewer.LinkTTL)
	resourceSvc := service.NewResourceService(repository.NewResourceRepository(backend), signer, auditSvc, validate, logr)
	userSvc := service.NewUserService(repository.NewUserRepository(backend), nil, nil, auditSvc, validate, logr)
	organizationSvc := service.NewOrganizationService(repository.NewOrganizationRepository(backend), nil, nil, auditSvc, validate, logr)

	checks := map[string]handler.ReadinessCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	}

	r := newRouter(cfg, routerDeps{
		logger:        logr,
		metrics:       metricsSvc,
		audit:         auditSvc,
		sessions:      sessionSvc,
		auth:          handler.NewAuthHandler(sessionSvc, middleware.CookieSettings{Name: cfg.Session.CookieName, Secure: cfg.Session.SecureCookie}),
		catalogue:     handler.NewCatalogueHandler(catalogueSvc),
		cart:          handler.NewCartHandler(cartSvc),
		resources:     handler.NewResourceHandler(resourceSvc),
		users:         handler.NewUserHandler(userSvc),
		organizations: handler.NewOrganizationHandler(organizationSvc),
		auditLogs:     handler.NewAuditHandler(auditSvc),
		events:        handler.NewEventHandler(events, 0),
		system:        handler.NewMetricsHandler(metricsSvc, backend, checks),
		pages:         handler.NewPageHandler(cfg.Console.StaticDir, resourceSvc),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditSvc.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	auditSvc.Stop()
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func newSessionStore(cfg *config.Config, client *redis.Client) (sessionStore, error) {
	if client == nil {
		return repository.NewMemorySessionRepository(cfg.Session.MemoryLimit, cfg.Session.TTL), nil
	}
	key := cfg.Session.SealKey
	if key == "" {
		key = cfg.Session.Secret
	}
	s, err := sealer.New(key, "console-session")
	if err != nil {
		return nil, err
	}
	return repository.NewRedisSessionRepository(client, s), nil
}
