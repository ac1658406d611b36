package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/handler"
	"github.com/Kshitij83/skillcy/internal/middleware"
	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/config"
	"github.com/Kshitij83/skillcy/pkg/logger"
	"github.com/Kshitij83/skillcy/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth    *handler.AuthHandler
	Profile *handler.ProfileHandler
	Course  *handler.CourseHandler
	Library *handler.LibraryHandler
	Stats   *handler.StatsHandler
	Users   *handler.UserHandler
	Exports *handler.ExportHandler
	Health  *handler.HealthHandler
}

// RouterDeps carries the cross-cutting collaborators of the middleware chain.
type RouterDeps struct {
	Tokens  middleware.TokenValidator
	Roles   middleware.RoleResolver
	Audit   middleware.AuditRecorder
	Metrics *service.MetricsService
	Logger  *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg *config.Config, h Handlers, deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(apiPrefix(cfg.APIPrefix))
	jwt := middleware.JWT(deps.Tokens)
	optional := middleware.OptionalJWT(deps.Tokens)
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, action, resource, idParam)
	}

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", jwt, h.Auth.Logout)

	api.GET("/profiles/:userId", optional, h.Profile.Get)
	api.GET("/exports/:token", h.Exports.Download)

	courses := api.Group("/courses")
	courses.GET("", optional, h.Course.List)
	courses.GET("/:id", optional, h.Course.Get)
	courses.POST("", jwt, audit(models.AuditActionCourseCreate, "course", ""), h.Course.Create)
	courses.PUT("/:id", jwt, audit(models.AuditActionCourseUpdate, "course", "id"), h.Course.Update)
	courses.DELETE("/:id", jwt, audit(models.AuditActionCourseDelete, "course", "id"), h.Course.Delete)

	me := api.Group("/me", jwt)
	me.GET("/profile", h.Profile.Me)
	me.PATCH("/profile", audit(models.AuditActionProfileUpdate, "profile", ""), h.Profile.UpdateMe)
	me.GET("/uploads", h.Course.ListUploads)
	me.GET("/library", h.Library.List)
	me.GET("/library/export", h.Library.Export)
	me.POST("/library/exports", audit(models.AuditActionExportShare, "export", ""), h.Exports.Share)
	me.POST("/library", audit(models.AuditActionLibraryAdd, "user_course", ""), h.Library.Add)
	me.PATCH("/library/:courseId", audit(models.AuditActionLibraryUpdate, "user_course", "courseId"), h.Library.Update)
	me.DELETE("/library/:courseId", audit(models.AuditActionLibraryRemove, "user_course", "courseId"), h.Library.Remove)

	admin := api.Group("/admin", jwt, middleware.RequireRoles(deps.Roles, models.RoleAdmin))
	admin.GET("/profiles/:userId/stats", h.Stats.Check)
	admin.POST("/profiles/:userId/stats/recompute", audit(models.AuditActionStatsRecompute, "profile", "userId"), h.Stats.Recompute)
	admin.GET("/stats/drift", h.Stats.Drift)
	admin.POST("/stats/recompute", audit(models.AuditActionStatsRecompute, "profile", ""), h.Stats.RecomputeAll)
	// role and status changes are audited by the service with before/after values
	admin.GET("/users", h.Users.List)
	admin.PATCH("/users/:userId/role", h.Users.SetRole)
	admin.PATCH("/users/:userId/status", h.Users.SetStatus)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found", "status": http.StatusNotFound}})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", requestid.Header},
		ExposeHeaders:    []string{requestid.Header, "Content-Disposition"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           10 * time.Minute,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func apiPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}
