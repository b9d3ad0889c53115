package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/flashcoder237/oapet-schedule-backend-sub000/api/swagger"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/handler"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/middleware"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/repository"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/service"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/cache"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/database"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/jobs"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/logger"
	corsmiddleware "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/middleware/requestid"
)

// @title OAPET Schedule Engine API
// @version 1.0.0
// @description Timetable generation and evaluation engine for university class schedules
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

	// Redis backs the run lock and the evaluation cache. The engine degrades
	// to single-instance in-memory locking without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-process locking and no evaluation cache", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	courseRepo := repository.NewCourseRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	classRepo := repository.NewClassRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)

	var locker interface {
		Acquire(ctx context.Context, scheduleID string) (bool, error)
		Release(ctx context.Context, scheduleID string)
	}
	if redisClient != nil {
		locker = service.NewRedisRunLocker(redisClient, cfg.Engine.LockTTL, logr)
	}

	generatorSvc := service.NewGeneratorService(
		scheduleRepo, classRepo, courseRepo, roomRepo, instructorRepo, timeSlotRepo,
		occurrenceRepo, occurrenceRepo, templateRepo, templateRepo,
		db, locker, metricsSvc, validate, logr, cfg.Engine,
	)
	evaluatorSvc := service.NewEvaluatorService(
		scheduleRepo, classRepo, courseRepo, roomRepo, instructorRepo, occurrenceRepo,
		redisClient, logr, cfg.Engine, cfg.Evaluation,
	)
	conflictSvc := service.NewConflictService(
		scheduleRepo, classRepo, courseRepo, roomRepo, instructorRepo, occurrenceRepo, logr,
	)
	occurrenceSvc := service.NewOccurrenceService(occurrenceRepo, occurrenceRepo, evaluatorSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, evaluatorSvc, logr)

	jobSvc := service.NewGenerationJobService(generatorSvc, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
	}, logr)
	jobSvc.Start(context.Background())
	defer jobSvc.Stop()

	generatorHandler := handler.NewGeneratorHandler(generatorSvc, jobSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluatorSvc, conflictSvc, metricsSvc)
	occurrenceHandler := handler.NewOccurrenceHandler(occurrenceSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": metricsSvc.Snapshot()})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/schedules", scheduleHandler.List)
		api.POST("/schedules", scheduleHandler.Create)
		api.GET("/schedules/:id", scheduleHandler.Get)
		api.DELETE("/schedules/:id", scheduleHandler.Delete)
		api.PUT("/schedules/:id/status", scheduleHandler.Transition)

		api.POST("/schedules/generate", generatorHandler.Generate)
		api.POST("/schedules/generate/async", generatorHandler.GenerateAsync)
		api.GET("/schedules/generate/jobs/:id", generatorHandler.JobStatus)

		api.GET("/schedules/:id/score", evaluationHandler.Score)
		api.GET("/schedules/:id/conflicts", evaluationHandler.Conflicts)

		api.PATCH("/occurrences/:id", occurrenceHandler.Modify)
		api.POST("/occurrences/:id/cancel", occurrenceHandler.Cancel)
		api.POST("/occurrences/:id/reschedule", occurrenceHandler.Reschedule)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
