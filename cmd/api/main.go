package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/studentlink/concern-service/internal/api/http"
	"github.com/studentlink/concern-service/internal/api/http/handlers"
	"github.com/studentlink/concern-service/internal/cache"
	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/events"
	"github.com/studentlink/concern-service/internal/observability"
	"github.com/studentlink/concern-service/internal/persistence"
	"github.com/studentlink/concern-service/internal/repository"
	"github.com/studentlink/concern-service/internal/service"
	"github.com/studentlink/concern-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	concernRepo := repository.NewConcernRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	crossDeptRepo := repository.NewCrossDepartmentRepository(pool)
	escalationRepo := repository.NewEscalationLogRepository(pool)
	historyRepo := repository.NewConcernHistoryRepository(pool)

	snapshotCache := cache.New(cache.NewRedisStore(redis.Client), logger)

	classifier := service.NewClassifierService(cfg.Engine.Classifier, metrics, logger)

	assigner := service.NewAssignmentService(service.AssignmentDependencies{
		ConcernRepo:   concernRepo,
		StaffRepo:     staffRepo,
		CrossDeptRepo: crossDeptRepo,
		HistoryRepo:   historyRepo,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Config:        cfg.Engine.Assignment,
	})

	notifier := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifier.RegisterHandlers()

	escalation := service.NewEscalationService(service.EscalationDependencies{
		ConcernRepo:    concernRepo,
		DepartmentRepo: departmentRepo,
		EscalationRepo: escalationRepo,
		Assigner:       assigner,
		Notifier:       notifier,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		Config:         cfg.Engine.Escalation,
	})

	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		ConcernRepo:    concernRepo,
		DepartmentRepo: departmentRepo,
		HistoryRepo:    historyRepo,
		Classifier:     classifier,
		Assigner:       assigner,
		Escalation:     escalation,
		Notifier:       notifier,
		ChatRooms:      &service.LoggingChatRoomProvisioner{Logger: logger},
		Reminders:      &service.LoggingReminderScheduler{Logger: logger},
		Dispatcher:     dispatcher,
		Logger:         logger,
		Config:         cfg.Engine.Workflow,
		ClassifierCfg:  cfg.Engine.Classifier,
	})

	workload := service.NewWorkloadService(service.WorkloadDependencies{
		ConcernRepo:    concernRepo,
		StaffRepo:      staffRepo,
		DepartmentRepo: departmentRepo,
		Assigner:       assigner,
		Snapshots:      snapshotCache,
		Logger:         logger,
		Config:         cfg.Engine.Balancer,
		MaxWorkload:    cfg.Engine.Assignment.MaxWorkload,
	})

	sweeper := worker.NewSweepWorker(escalation, workload, workflow, metrics, logger, cfg.Engine.Sweep.Interval())
	sweeper.Start(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Concerns:    handlers.NewConcernsHandler(workflow, assigner, concernRepo),
		Departments: handlers.NewDepartmentsHandler(workload, sweeper),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
