package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/config"
	"github.com/quantflow/optimizer/internal/database"
	"github.com/quantflow/optimizer/internal/events"
	"github.com/quantflow/optimizer/internal/metrics"
	"github.com/quantflow/optimizer/internal/modules/analysis"
	"github.com/quantflow/optimizer/internal/modules/improvement"
	"github.com/quantflow/optimizer/internal/modules/pipeline"
	"github.com/quantflow/optimizer/internal/notify"
	"github.com/quantflow/optimizer/internal/scheduler"
	"github.com/quantflow/optimizer/internal/server"
	"github.com/quantflow/optimizer/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting QuantFlow Optimizer")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Events, metrics and notifications
	eventManager := events.NewManager(log)
	promMetrics := metrics.New()

	var notifier notify.Notifier = notify.NewEventNotifier(eventManager)
	if cfg.WebhookURL != "" {
		notifier = notify.Multi{notifier, notify.NewWebhookNotifier(cfg.WebhookURL, log)}
	}

	// Repositories
	taskRepo := improvement.NewTaskRepository(db.Conn(), log)
	tradeRepo := analysis.NewTradeRepository(db.Conn(), log)
	snapshotRepo := analysis.NewSnapshotRepository(db.Conn(), log)
	modelRepo := analysis.NewModelRepository(db.Conn(), log)
	rolloutRepo := pipeline.NewRolloutRepository(db.Conn(), log)

	// Task registry, seeded from persisted state
	registry := improvement.NewRegistry(taskRepo, notifier, log)
	persisted, err := taskRepo.LoadAll()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load persisted tasks")
	}
	registry.LoadFrom(persisted)
	log.Info().Int("tasks", len(persisted)).Msg("Task registry loaded")

	// Improvement engine
	engine := improvement.NewEngine(improvement.EngineConfig{
		Registry: registry,
		Handlers: improvement.NewHandlerRegistry(log),
		Store:    taskRepo,
		Notifier: notifier,
		Metrics:  promMetrics,
		Log:      log,
		Interval: time.Duration(cfg.PollIntervalSecs) * time.Second,
	})
	engine.Start()
	defer engine.Stop()

	// Analysis and pipeline
	analyzer := analysis.NewAnalyzer(tradeRepo, snapshotRepo, log)

	rolloutController := pipeline.NewController(pipeline.ControllerConfig{
		Deployer:     pipeline.SimDeployer{},
		ABTester:     pipeline.NewSimABTester(),
		Store:        rolloutRepo,
		Notifier:     notifier,
		Metrics:      promMetrics,
		Log:          log,
		CanaryWindow: time.Duration(cfg.CanaryWindowMins) * time.Minute,
		RampWindow:   time.Duration(cfg.RampWindowMins) * time.Minute,
	})

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Source:   analysis.NewSource(analyzer, modelRepo),
		Rollouts: rolloutController,
		Notifier: notifier,
		Metrics:  promMetrics,
		Log:      log,
	})

	// Background jobs
	sched := scheduler.New(log)
	registerJobs(sched, log, db, cfg, rolloutController, analyzer, tradeRepo, snapshotRepo, notifier)
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		DevMode:  cfg.DevMode,
		Registry: registry,
		Engine:   engine,
		Tasks:    taskRepo,
		Runner:   runner,
		Rollouts: rolloutRepo,
		Analyzer: analyzer,
		Events:   eventManager,
		Metrics:  promMetrics,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	engine.Stop()
	engine.Wait()

	log.Info().Msg("Stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	log zerolog.Logger,
	db *database.DB,
	cfg *config.Config,
	controller *pipeline.Controller,
	analyzer *analysis.Analyzer,
	trades analysis.TradeSource,
	snapshots *analysis.SnapshotRepository,
	notifier notify.Notifier,
) {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"@every 60s", scheduler.NewRolloutAdvanceJob(controller, log)},
		{"0 5 0 * * *", scheduler.NewSnapshotCaptureJob(analyzer, trades, snapshots, log)},
		{"0 0 */6 * * *", scheduler.NewHealthCheckJob(db, notifier, log)},
	}
	if cfg.BackupEnabled() {
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{"0 30 0 * * *", scheduler.NewBackupJob(db, cfg.BackupBucket, cfg.BackupPrefix, cfg.AWSRegion, log)})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
}
