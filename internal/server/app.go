package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kshitij83/skillcy/internal/handler"
	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/repository"
	"github.com/Kshitij83/skillcy/internal/service"
	"github.com/Kshitij83/skillcy/pkg/cache"
	"github.com/Kshitij83/skillcy/pkg/config"
	"github.com/Kshitij83/skillcy/pkg/database"
	"github.com/Kshitij83/skillcy/pkg/jobs"
	"github.com/Kshitij83/skillcy/pkg/storage"
	"github.com/Kshitij83/skillcy/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// App owns the process-wide resources of the API server.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	redis   *redis.Client
	audit   *service.AuditService
	exports *service.ExportService
	router  *gin.Engine
	tracing tracing.ShutdownFunc
}

// New connects to the backing stores and assembles the HTTP stack. Redis is optional: when it
// cannot be reached the catalog cache is disabled and the server still starts.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("connect database: %w", err)
	}

	app := &App{cfg: cfg, logger: logger, db: db, tracing: shutdownTracing}

	if cfg.Catalog.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			app.redis = client
		}
	}

	if err := app.wire(); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.cfg
	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(a.db)
	profiles := repository.NewProfileRepository(a.db)
	courses := repository.NewCourseRepository(a.db)
	enrollments := repository.NewUserCourseRepository(a.db)

	a.audit = service.NewAuditService(repository.NewAuditRepository(a.db), a.logger, jobs.Config{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	})

	var cacheSvc *service.CacheService
	if a.redis != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(a.redis, a.logger), metrics, cfg.Catalog.CacheTTL, a.logger, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Catalog.CacheTTL, a.logger, false)
	}

	trigger := service.NewStatsTrigger(profiles, metrics, a.logger)

	authSvc := service.NewAuthService(a.db, users, profiles, a.audit, validate, a.logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	profileSvc := service.NewProfileService(a.db, profiles, validate, a.logger, cfg.Profiles.AvatarBaseURL)
	courseSvc := service.NewCourseService(a.db, courses, enrollments, profiles, trigger, cacheSvc, validate, a.logger, service.CourseServiceConfig{
		DefaultImageURL: cfg.Courses.DefaultImageURL,
		CatalogTTL:      cfg.Catalog.CacheTTL,
	})
	librarySvc := service.NewLibraryService(a.db, enrollments, courses, profiles, trigger, validate, a.logger)
	files, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		return fmt.Errorf("open export storage: %w", err)
	}
	a.exports = service.NewExportService(enrollments, a.logger, nil, nil).
		WithSharing(files, storage.NewLinkSigner(cfg.Exports.SigningSecret, cfg.Exports.LinkTTL))
	userSvc := service.NewUserService(a.db, users, profiles, a.audit, validate, a.logger)
	statsSvc := service.NewStatsService(a.db, profiles, trigger, metrics, a.logger, cfg.Stats.RecomputeConcurrency)

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(a.db.PingContext)}
	if a.redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return a.redis.Ping(ctx).Err() })
	}

	a.router = NewRouter(cfg, Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Profile: handler.NewProfileHandler(profileSvc),
		Course:  handler.NewCourseHandler(courseSvc),
		Library: handler.NewLibraryHandler(librarySvc, a.exports),
		Stats:   handler.NewStatsHandler(statsSvc),
		Users:   handler.NewUserHandler(userSvc),
		Exports: handler.NewExportHandler(a.exports, path.Join(apiPrefix(cfg.APIPrefix), "exports")),
		Health:  handler.NewHealthHandler(metrics, checks),
	}, RouterDeps{
		Tokens:  authSvc,
		Roles:   profileRoleResolver(profiles),
		Audit:   a.audit,
		Metrics: metrics,
		Logger:  a.logger,
	})
	return nil
}

// DB exposes the connection pool for startup tasks such as migrations.
func (a *App) DB() *sqlx.DB {
	return a.db
}

// Handler exposes the assembled router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and queued audit entries.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.audit.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.pruneExports(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		a.logger.Info("server shutting down")
		err := srv.Shutdown(shutdownCtx)
		if stopErr := a.audit.Stop(shutdownCtx); stopErr != nil {
			a.logger.Warn("audit queue did not drain", zap.Error(stopErr))
		}
		return err
	})
	return g.Wait()
}

// pruneExports deletes stored exports older than the link lifetime until ctx ends.
func (a *App) pruneExports(ctx context.Context) {
	interval := a.cfg.Exports.LinkTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.exports.PruneExpired(); err != nil {
				a.logger.Warn("export prune failed", zap.Error(err))
			}
		}
	}
}

// Close releases the database, cache and tracer.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing(ctx))
	}
	return errors.Join(errs...)
}

func profileRoleResolver(profiles *repository.ProfileRepository) func(ctx context.Context, userID string) (models.Role, error) {
	return func(ctx context.Context, userID string) (models.Role, error) {
		profile, err := profiles.FindByUserID(ctx, nil, userID)
		if err != nil {
			return "", err
		}
		return profile.Role, nil
	}
}
