package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/assignment-portal-api/api/swagger"
	"github.com/noah-isme/assignment-portal-api/internal/handler"
	"github.com/noah-isme/assignment-portal-api/internal/middleware"
	"github.com/noah-isme/assignment-portal-api/internal/models"
	"github.com/noah-isme/assignment-portal-api/internal/repository"
	"github.com/noah-isme/assignment-portal-api/internal/service"
	"github.com/noah-isme/assignment-portal-api/pkg/cache"
	"github.com/noah-isme/assignment-portal-api/pkg/config"
	"github.com/noah-isme/assignment-portal-api/pkg/database"
	"github.com/noah-isme/assignment-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/assignment-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/assignment-portal-api/pkg/middleware/requestid"
)

// @title Assignment Portal API
// @version 1.0.0
// @description Teachers publish assignments, students submit answers
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	policy := service.NewAccessPolicy()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, cacheRepo, policy, validate, logr, metricsSvc, cfg.Assignments.PublishedCacheTTL)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, policy, validate, logr, metricsSvc)
	exportSvc := service.NewExportService(submissionSvc, nil, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
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
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	assignments := api.Group("/assignments", middleware.JWT(authSvc))
	assignments.GET("", middleware.RequireRoles(models.RoleTeacher, models.RoleStudent), assignmentHandler.List)
	assignments.GET("/:id", middleware.RequireRoles(models.RoleTeacher, models.RoleStudent), assignmentHandler.Get)
	assignments.POST("", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(userRepo, models.AuditActionAssignmentCreate, "assignment"), assignmentHandler.Create)
	assignments.PUT("/:id", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(userRepo, models.AuditActionAssignmentUpdate, "assignment"), assignmentHandler.Update)
	assignments.PUT("/:id/status", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(userRepo, models.AuditActionAssignmentStatus, "assignment"), assignmentHandler.UpdateStatus)
	assignments.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(userRepo, models.AuditActionAssignmentDelete, "assignment"), assignmentHandler.Delete)
	assignments.GET("/:id/submissions", middleware.RequireRoles(models.RoleTeacher), submissionHandler.ListForAssignment)
	assignments.GET("/:id/submissions/export", middleware.RequireRoles(models.RoleTeacher), submissionHandler.Export)

	submissions := api.Group("/submissions", middleware.JWT(authSvc))
	submissions.POST("", middleware.RequireRoles(models.RoleStudent), middleware.Audit(userRepo, models.AuditActionSubmissionCreate, "submission"), submissionHandler.Create)
	submissions.GET("/my", middleware.RequireRoles(models.RoleStudent), submissionHandler.ListMine)
	submissions.GET("/:id", middleware.RequireRoles(models.RoleTeacher, models.RoleStudent), submissionHandler.Get)
	submissions.PUT("/:id/review", middleware.RequireRoles(models.RoleTeacher), middleware.Audit(userRepo, models.AuditActionSubmissionReviewed, "submission"), submissionHandler.MarkReviewed)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
