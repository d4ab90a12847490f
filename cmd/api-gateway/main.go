package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/lessonloop/lessonloop-api/api/swagger"
	"github.com/lessonloop/lessonloop-api/internal/handler"
	"github.com/lessonloop/lessonloop-api/internal/middleware"
	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/repository"
	"github.com/lessonloop/lessonloop-api/internal/service"
	"github.com/lessonloop/lessonloop-api/pkg/cache"
	"github.com/lessonloop/lessonloop-api/pkg/config"
	"github.com/lessonloop/lessonloop-api/pkg/database"
	"github.com/lessonloop/lessonloop-api/pkg/export"
	"github.com/lessonloop/lessonloop-api/pkg/jobs"
	"github.com/lessonloop/lessonloop-api/pkg/logger"
	corsmiddleware "github.com/lessonloop/lessonloop-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lessonloop/lessonloop-api/pkg/middleware/requestid"
	"github.com/lessonloop/lessonloop-api/pkg/signing"
)

// @title LessonLoop API
// @version 1.0.0
// @description Peer-to-peer lesson booking marketplace
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
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Slots.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, slot cache disabled", "error", err)
		}
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Slots.CacheTTL, logr, cfg.Slots.CacheEnabled && redisClient != nil)

	notificationQueue := jobs.NewQueue("booking-events", service.BookingEventHandler(logr), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	notificationService := service.NewNotificationService(notificationQueue, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	teacherService := service.NewTeacherService(teacherRepo, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, bookingRepo, cacheService, metricsService, logr)
	bookingService := service.NewBookingService(bookingRepo, availabilityService, cacheService, notificationService, validate, logr, cfg.Booking.PendingTTL)
	scheduleService := service.NewScheduleService(scheduleRepo, cacheService, validate, logr)
	feedSigner := signing.NewFeedTokenSigner(cfg.Calendar.FeedTokenSecret, cfg.Calendar.FeedTokenTTL)
	calendarService := service.NewCalendarService(bookingRepo, feedSigner, export.NewICalExporter(cfg.Calendar.Domain), logr)
	exportService := service.NewExportService(bookingRepo, scheduleRepo, logr)

	// Background workers.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationQueue.Start(ctx)
	defer notificationQueue.Stop()
	go runExpirySweep(ctx, bookingService, cfg.Booking.SweepInterval, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService, teacherService)
	bookingHandler := handler.NewBookingHandler(bookingService, teacherService, exportService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService, teacherService, availabilityService, exportService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
			auth.GET("/me", middleware.JWT(authService), authHandler.Me)
		}

		// Public availability surface: slot browsing works without a session.
		api.GET("/teachers/:id/slots", availabilityHandler.Slots)
		api.GET("/teachers/:id/availability", availabilityHandler.Check)
		api.GET("/teachers/:id/policy", availabilityHandler.Policy)

		api.GET("/calendar/feed", calendarHandler.Feed)

		authed := api.Group("", middleware.JWT(authService))
		{
			bookings := authed.Group("/bookings")
			{
				bookings.POST("", bookingHandler.Create)
				bookings.GET("", bookingHandler.List)
				bookings.GET("/export", bookingHandler.ExportCSV)
				bookings.GET("/:id", bookingHandler.Get)
				bookings.POST("/:id/cancel", bookingHandler.Cancel)
			}

			me := authed.Group("/me")
			{
				me.POST("/calendar/token", calendarHandler.FeedToken)

				teacherOnly := me.Group("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
				{
					teacherOnly.GET("/schedule/rules", scheduleHandler.ListRules)
					teacherOnly.POST("/schedule/rules", scheduleHandler.CreateRule)
					teacherOnly.PUT("/schedule/rules/:id", scheduleHandler.UpdateRule)
					teacherOnly.DELETE("/schedule/rules/:id", scheduleHandler.DeleteRule)
					teacherOnly.GET("/schedule/blocks", scheduleHandler.ListBlocks)
					teacherOnly.POST("/schedule/blocks", scheduleHandler.CreateBlock)
					teacherOnly.DELETE("/schedule/blocks/:id", scheduleHandler.DeleteBlock)
					teacherOnly.GET("/schedule/export", scheduleHandler.ExportPDF)
					teacherOnly.GET("/policy", scheduleHandler.GetPolicy)
					teacherOnly.PUT("/policy", scheduleHandler.UpdatePolicy)
				}
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// runExpirySweep periodically expires stale pending bookings.
func runExpirySweep(ctx context.Context, bookings *service.BookingService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bookings.ExpireStalePending(ctx); err != nil {
				logr.Warn("pending booking sweep failed", zap.Error(err))
			}
		}
	}
}
