package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushire/placement-api/api/swagger"
	"github.com/campushire/placement-api/internal/handler"
	"github.com/campushire/placement-api/internal/middleware"
	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/internal/repository"
	"github.com/campushire/placement-api/internal/service"
	"github.com/campushire/placement-api/pkg/cache"
	"github.com/campushire/placement-api/pkg/config"
	"github.com/campushire/placement-api/pkg/database"
	"github.com/campushire/placement-api/pkg/jobs"
	"github.com/campushire/placement-api/pkg/logger"
	corsmiddleware "github.com/campushire/placement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushire/placement-api/pkg/middleware/requestid"
	"github.com/campushire/placement-api/pkg/storage"
)

// @title CampusHire Placement API
// @version 1.0.0
// @description Campus recruitment portal: drives, applications and offers
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	resumeStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to init resume storage", zap.Error(err))
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init report storage", zap.Error(err))
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	universityRepo := repository.NewUniversityRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	driveRepo := repository.NewDriveRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	notificationSvc := service.NewNotificationService(logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.Auth.SingleSession,
		MaxLoginAttempts:   cfg.Auth.MaxLoginAttempts,
		LockoutDuration:    cfg.Auth.LockoutDuration,
	})
	studentSvc := service.NewStudentService(studentRepo, resumeStore, nil, logr, cfg.Documents.MaxFileSizeBytes)
	universitySvc := service.NewUniversityService(universityRepo, nil, logr)
	companySvc := service.NewCompanyService(companyRepo, nil, logr)
	driveSvc := service.NewDriveService(driveRepo, studentRepo, cacheRepo, notificationSvc, nil, logr, cfg.Statistics.CacheTTL)
	applicationSvc := service.NewApplicationService(applicationRepo, studentRepo, driveRepo, notificationSvc, cacheRepo, nil, logr)
	offerSvc := service.NewOfferService(offerRepo, applicationRepo, studentRepo, driveRepo, notificationSvc, cacheRepo, nil, logr, cfg.Offers.DefaultValidity)
	aiSvc := service.NewAIService(driveRepo, studentRepo, logr, service.AIConfig{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		MaxAttempts: cfg.AI.MaxAttempts,
	})
	exportSvc := service.NewExportService(driveRepo, applicationRepo, offerRepo, reportStore, reportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
	}, logr)
	metricsSvc := service.NewMetricsService()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	universityHandler := handler.NewUniversityHandler(universitySvc)
	companyHandler := handler.NewCompanyHandler(companySvc)
	driveHandler := handler.NewDriveHandler(driveSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	offerHandler := handler.NewOfferHandler(offerSvc)
	aiHandler := handler.NewAIHandler(aiSvc)
	reportHandler := handler.NewReportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), studentHandler.Create)
		students.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity, models.RoleCompany), studentHandler.List)
		students.GET("/me", middleware.RequireRoles(models.RoleStudent), studentHandler.Me)
		students.GET("/:id", studentHandler.Get)
		students.PUT("/:id", studentHandler.Update)
		students.POST("/:id/verify", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), studentHandler.Verify)
		students.POST("/:id/resumes", studentHandler.UploadResume)
		students.GET("/:id/resumes", studentHandler.Resumes)
		students.POST("/:id/resumes/:resumeId/activate", studentHandler.ActivateResume)
	}

	universities := api.Group("/universities", middleware.JWT(authSvc))
	{
		universities.POST("", middleware.RequireRoles(models.RoleAdmin), universityHandler.Create)
		universities.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), universityHandler.Update)
		universities.GET("", universityHandler.List)
		universities.GET("/:id", universityHandler.Get)
		universities.GET("/:id/departments", universityHandler.Departments)
		universities.POST("/:id/departments", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), universityHandler.AddDepartment)
		universities.GET("/:id/summary", universityHandler.Summary)
	}

	companies := api.Group("/companies", middleware.JWT(authSvc))
	{
		companies.POST("", middleware.RequireRoles(models.RoleAdmin), companyHandler.Create)
		companies.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), companyHandler.Update)
		companies.GET("", companyHandler.List)
		companies.GET("/:id", companyHandler.Get)
		companies.GET("/:id/summary", companyHandler.Summary)
	}

	drives := api.Group("/drives", middleware.JWT(authSvc))
	{
		drives.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), driveHandler.Create)
		drives.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), driveHandler.Update)
		drives.GET("", driveHandler.List)
		drives.GET("/:id", driveHandler.Get)
		drives.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), middleware.Audit(userRepo, "drive.approve", "drive"), driveHandler.Approve)
		drives.POST("/:id/publish", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), middleware.Audit(userRepo, "drive.publish", "drive"), driveHandler.Publish)
		drives.POST("/:id/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), driveHandler.Complete)
		drives.POST("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), driveHandler.Cancel)
		drives.POST("/:id/roster", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), driveHandler.BuildRoster)
		drives.GET("/:id/candidates", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity, models.RoleCompany), driveHandler.Candidates)
		drives.POST("/:id/candidates", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity), driveHandler.AddCandidate)
		drives.GET("/:id/statistics", driveHandler.Statistics)
		drives.GET("/:id/eligibility", middleware.RequireRoles(models.RoleStudent), applicationHandler.Eligibility)
	}

	applications := api.Group("/applications", middleware.JWT(authSvc))
	{
		applications.POST("", middleware.RequireRoles(models.RoleStudent), applicationHandler.Apply)
		applications.GET("", applicationHandler.List)
		applications.GET("/:id", applicationHandler.Get)
		applications.GET("/:id/history", applicationHandler.History)
		applications.POST("/:id/transition", middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity, models.RoleCompany), middleware.Audit(userRepo, "application.transition", "application"), applicationHandler.Transition)
		applications.POST("/:id/withdraw", applicationHandler.Withdraw)
		applications.POST("/:id/rounds", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), applicationHandler.RecordRound)
	}

	offers := api.Group("/offers", middleware.JWT(authSvc))
	{
		offers.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleCompany), middleware.Audit(userRepo, "offer.issue", "offer"), offerHandler.Issue)
		offers.GET("", offerHandler.List)
		offers.GET("/:id", offerHandler.Get)
		offers.POST("/:id/respond", offerHandler.Respond)
	}

	ai := api.Group("/ai", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity, models.RoleCompany))
	{
		ai.POST("/match-resume", aiHandler.MatchResume)
		ai.POST("/drives/:id/screen", aiHandler.Screen)
		ai.POST("/students/:id/recommend", aiHandler.Recommend)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/download", reportHandler.Download)

		authedReports := reports.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleUniversity, models.RoleCompany))
		authedReports.GET("/drives/:id", reportHandler.DriveReport)
		authedReports.GET("/drives/:id/offers", reportHandler.OfferReport)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	// Background sweeps. Offer expiry is already applied lazily on reads,
	// the ticker keeps stored rows from drifting when nobody looks at them.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if expired, err := offerSvc.ExpireDue(ctx, 100); err != nil {
					logr.Warn("offer expiry sweep failed", zap.Error(err))
				} else if expired > 0 {
					logr.Info("offers expired", zap.Int("count", expired))
				}
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.Cleanup()
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
