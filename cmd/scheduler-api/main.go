package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/parishops/acolyte-scheduler-api/internal/handler"
	"github.com/parishops/acolyte-scheduler-api/internal/models"
	"github.com/parishops/acolyte-scheduler-api/internal/repository"
	"github.com/parishops/acolyte-scheduler-api/internal/service"
	"github.com/parishops/acolyte-scheduler-api/pkg/cache"
	"github.com/parishops/acolyte-scheduler-api/pkg/config"
	"github.com/parishops/acolyte-scheduler-api/pkg/database"
	"github.com/parishops/acolyte-scheduler-api/pkg/jobs"
	"github.com/parishops/acolyte-scheduler-api/pkg/logger"
	corsmiddleware "github.com/parishops/acolyte-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/parishops/acolyte-scheduler-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	// Redis powers events and the quick fill cache; the engine degrades to
	// direct reads when it is down.
	var events service.EventPublisher = service.NopPublisher{}
	var quickFillCache *service.RedisCandidateCache
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, events and candidate cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		quickFillCache = service.NewRedisCandidateCache(redisClient)
		if cfg.Events.Enabled {
			events = service.NewRedisEventPublisher(redisClient, cfg.Events.Channel, logr)
		}
	}

	parishRepo := repository.NewParishRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	acolyteRepo := repository.NewAcolyteRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	jobRepo := repository.NewJobRepository(db)

	defaults := models.ScheduleWeights{
		Preference:         cfg.Scheduler.PreferenceWeight,
		Stability:          cfg.Scheduler.StabilityPenalty,
		LoadBalance:        cfg.Scheduler.LoadBalanceWeight,
		Credit:             cfg.Scheduler.CreditWeight,
		CreditCap:          cfg.Scheduler.CreditCap,
		ReservePenalty:     cfg.Scheduler.ReservePenalty,
		FillBonus:          cfg.Scheduler.FillBonus,
		ReliabilityPenalty: cfg.Scheduler.ReliabilityPenalty,
		MaxServicesPerWeek: cfg.Scheduler.MaxServicesPerWeek,
		MinRestMinutes:     cfg.Scheduler.MinRestMinutes,
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	snapshots := service.NewSnapshotService(
		parishRepo, slotRepo, acolyteRepo, availabilityRepo,
		preferenceRepo, statsRepo, assignmentRepo, defaults,
		cfg.Scheduler.ConsolidationDays, logr,
	)
	committer := service.NewCommitService(assignmentRepo, slotRepo, db, events, logr)

	var quickFillCacheIface service.CandidateCache
	if quickFillCache != nil {
		quickFillCacheIface = quickFillCache
	}
	quickFill := service.NewQuickFillService(
		slotRepo, snapshots, assignmentRepo, statsRepo, db, events,
		quickFillCacheIface, cfg.Scheduler.QuickFillCacheTTL, metrics, logr,
	)
	exports := service.NewExportService(assignmentRepo, jobRepo, logr)

	var jobService *service.ScheduleJobService
	queue := jobs.NewQueue(jobTypeName, func(ctx context.Context, job jobs.Job) error {
		return jobService.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		BufferSize: cfg.Scheduler.QueueSize,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: cfg.Scheduler.RetryDelay,
		Logger:     logr,
	})
	jobService = service.NewScheduleJobService(
		jobRepo, snapshots, committer, queue, metrics, validate, logr,
		service.ScheduleJobConfig{
			DefaultHorizonDays: cfg.Scheduler.DefaultHorizonDays,
			SolveTimeout:       cfg.Scheduler.SolveTimeout,
			SolverSeed:         cfg.Scheduler.SolverSeed,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	if err := jobService.RecoverPending(ctx); err != nil {
		logr.Sugar().Errorw("pending job recovery failed", "error", err)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(metrics.GinMiddleware())
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	schedulerHandler := handler.NewSchedulerHandler(jobService, quickFill, exports)
	schedulerHandler.Register(api)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

const jobTypeName = "schedule-runs"
