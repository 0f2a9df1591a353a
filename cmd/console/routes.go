package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/handler"
	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	"github.com/golabing/console/pkg/config"
	"github.com/golabing/console/pkg/logger"
	corsmiddleware "github.com/golabing/console/pkg/middleware/cors"
	reqidmiddleware "github.com/golabing/console/pkg/middleware/requestid"
)

type routerDeps struct {
	logger   *zap.Logger
	metrics  *service.MetricsService
	audit    *service.AuditService
	sessions *service.SessionService

	auth          *handler.AuthHandler
	catalogue     *handler.CatalogueHandler
	cart          *handler.CartHandler
	resources     *handler.ResourceHandler
	users         *handler.UserHandler
	organizations *handler.OrganizationHandler
	auditLogs     *handler.AuditHandler
	events        *handler.EventHandler
	system        *handler.MetricsHandler
	pages         *handler.PageHandler
}

func newRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(d.metrics))
		r.GET("/metrics", d.system.Prometheus)
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", d.system.Health)
	r.GET("/ready", d.system.Ready)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	withSession := middleware.Session(d.sessions, middleware.CookieSettings{Name: cfg.Session.CookieName, Secure: cfg.Session.SecureCookie})
	registerAPI(r.Group(cfg.APIPrefix, withSession), d)
	registerPages(r, withSession, d)
	return r
}

func registerAPI(api *gin.RouterGroup, d routerDeps) {
	admins := []models.Role{models.RoleSuperAdmin, models.RoleOrgSuperAdmin, models.RoleOrgAdmin}

	auth := api.Group("/auth")
	auth.POST("/login", d.auth.Login)
	auth.POST("/logout", d.auth.Logout)
	auth.GET("/me", d.auth.Me)
	auth.POST("/acknowledge-expiry", d.auth.AcknowledgeExpiry)

	secured := api.Group("", middleware.APIGuard(d.sessions))
	secured.POST("/auth/switch-organization", middleware.RequireCapability(models.CapImpersonate), d.auth.SwitchOrganization)
	secured.POST("/auth/reset-role", d.auth.ResetRole)

	secured.GET("/catalogue", d.catalogue.List)
	secured.GET("/catalogue/:id", d.catalogue.Get)
	manageCatalogue := middleware.RequireCapability(models.CapManageCatalogue)
	secured.POST("/catalogue", manageCatalogue, d.catalogue.Create)
	secured.PUT("/catalogue/:id", manageCatalogue, d.catalogue.Update)
	secured.DELETE("/catalogue/:id", manageCatalogue, d.catalogue.Delete)

	secured.GET("/cart", d.cart.List)
	secured.DELETE("/cart", d.cart.Clear)
	secured.POST("/cart/items", d.cart.Add)
	secured.PATCH("/cart/items/:id", d.cart.Update)
	secured.DELETE("/cart/items/:id", d.cart.Remove)
	secured.POST("/cart/checkout", d.cart.Checkout)
	secured.POST("/cart/open", d.cart.Open)

	secured.GET("/events", d.events.Stream)
	secured.GET("/viewer/:vmId", d.resources.VerifyViewer)

	resources := secured.Group("/resources/:kind")
	resources.GET("", d.resources.List)
	resources.GET("/:id", d.resources.Get)
	resources.PUT("/:id", d.resources.Update)
	resources.DELETE("/:id", d.resources.Delete)
	resources.POST("/:id/power", d.resources.Power)
	resources.POST("/:id/convert", middleware.RequireCapability(models.CapConvert), d.resources.Convert)
	resources.GET("/:id/credentials", d.resources.Credentials)
	resources.PUT("/:id/credentials/:credentialId", d.resources.EditCredential)
	resources.POST("/:id/credentials/:credentialId/reveal", d.resources.Reveal)
	resources.POST("/:id/credentials/:credentialId/toggle", d.resources.Toggle)
	resources.POST("/:id/credentials/:credentialId/connect", d.resources.Connect)

	users := api.Group("/users", middleware.APIGuard(d.sessions, admins...), middleware.RequireCapability(models.CapManageUsers))
	users.GET("", d.users.List)
	users.GET("/export", middleware.Audit(d.audit, models.AuditActionExport, "users"), d.users.Export)
	users.POST("", d.users.Create)
	users.POST("/bulk", d.users.BulkUpload)
	users.POST("/delete", d.users.Delete)
	users.PUT("/:id", d.users.Update)
	users.PUT("/:id/role", d.users.AssignRole)
	users.PUT("/:id/organization", d.users.AssignOrganization)
	users.POST("/:id/labs", d.users.AssignLab)

	orgAdmins := api.Group("/org-admins", middleware.APIGuard(d.sessions, admins...), middleware.RequireCapability(models.CapManageUsers))
	orgAdmins.GET("", d.users.ListOrgAdmins)
	orgAdmins.POST("", d.users.CreateOrgAdmin)

	superadmin := api.Group("", middleware.APIGuard(d.sessions, models.RoleSuperAdmin))
	orgs := superadmin.Group("/organizations")
	orgs.GET("", d.organizations.List)
	orgs.GET("/export", middleware.Audit(d.audit, models.AuditActionExport, "organizations"), d.organizations.Export)
	orgs.POST("", d.organizations.Create)
	orgs.PUT("/:id", d.organizations.Update)
	orgs.DELETE("/:id", d.organizations.Delete)
	superadmin.GET("/audit-logs", d.auditLogs.List)
	superadmin.GET("/system/metrics", d.system.Snapshot)
}

func registerPages(r *gin.Engine, withSession gin.HandlerFunc, d routerDeps) {
	if dir := d.pages.AssetsDir(); dir != "" {
		r.Static("/assets", dir)
	}
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	r.GET(service.LoginPath, d.pages.Shell)
	r.GET(service.UnauthorizedPath, d.pages.Shell)

	guard := middleware.PageGuard(d.sessions)
	r.GET("/dashboard/*any", withSession, guard, d.pages.Dashboard)
}
