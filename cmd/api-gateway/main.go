package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/ems-leave-api/api/swagger"
	"github.com/noah-isme/ems-leave-api/internal/handler"
	"github.com/noah-isme/ems-leave-api/internal/middleware"
	"github.com/noah-isme/ems-leave-api/internal/models"
	"github.com/noah-isme/ems-leave-api/internal/repository"
	"github.com/noah-isme/ems-leave-api/internal/service"
	"github.com/noah-isme/ems-leave-api/pkg/cache"
	"github.com/noah-isme/ems-leave-api/pkg/config"
	"github.com/noah-isme/ems-leave-api/pkg/database"
	"github.com/noah-isme/ems-leave-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ems-leave-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ems-leave-api/pkg/middleware/requestid"
	"github.com/noah-isme/ems-leave-api/pkg/workdays"
)

// @title EMS Leave API
// @version 1.0.0
// @description Employee leave request lifecycle: balances, reviews and accrual
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, balance cache disabled", "error", err)
		redisClient = nil
	}

	weekend, err := workdays.ParseWeekend(cfg.Leave.WeekendDays)
	if err != nil {
		logr.Sugar().Fatalw("invalid weekend configuration", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	vacationRepo := repository.NewVacationRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsService := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, auditRepo, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "ems-leave-api",
	})

	vacationService := service.NewVacationService(vacationRepo, userRepo, auditRepo, cacheRepo,
		service.VacationConfig{
			Weekend:         weekend,
			BalanceCacheTTL: cfg.Leave.BalanceCacheTTL,
		},
		logr,
		service.WithVacationMetrics(metricsService),
		service.WithDepartmentDirectory(departmentRepo),
	)

	accrualService := service.NewAccrualService(ledgerRepo, vacationRepo, auditRepo,
		service.AccrualPolicy{
			RewardDays:    cfg.Leave.RewardMonthlyDay,
			AnnualDefault: cfg.Leave.AnnualDefault,
			CheckInterval: cfg.Accrual.CheckInterval,
			Workers:       cfg.Accrual.Workers,
			MaxRetries:    cfg.Accrual.MaxRetries,
		},
		logr,
		service.WithAccrualMetrics(metricsService),
	)

	authHandler := handler.NewAuthHandler(authService)
	vacationHandler := handler.NewVacationHandler(vacationService)
	accrualHandler := handler.NewAccrualHandler(accrualService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.JWT(authService))
	protected.GET("/vacations", vacationHandler.List)
	protected.POST("/vacations", vacationHandler.Submit)
	protected.GET("/vacations/:id", vacationHandler.Get)
	protected.POST("/vacations/:id/chief-review",
		middleware.RequireRoles(models.RoleDepartmentChief, models.RoleAdmin), vacationHandler.ChiefReview)
	protected.POST("/vacations/:id/principal-review",
		middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin), vacationHandler.PrincipalReview)
	protected.POST("/vacations/:id/cancel", vacationHandler.Cancel)
	protected.PUT("/vacations/:id/dates",
		middleware.RequireRoles(models.RoleDepartmentChief, models.RoleAdmin), vacationHandler.EditDates)
	protected.GET("/reports/vacations", vacationHandler.Report)
	protected.GET("/balance", vacationHandler.Balance)
	protected.GET("/balance/:id", vacationHandler.BalanceByID)
	protected.POST("/admin/accrual/run",
		middleware.RequireRoles(models.RoleAdmin), accrualHandler.Run)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Accrual.Enabled {
		accrualService.Start(rootCtx)
		defer accrualService.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
