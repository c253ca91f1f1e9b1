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

	"go.uber.org/zap"

	"github.com/probewatch/probewatch/internal/alerting"
	"github.com/probewatch/probewatch/internal/api"
	"github.com/probewatch/probewatch/internal/checks"
	"github.com/probewatch/probewatch/internal/config"
	"github.com/probewatch/probewatch/internal/database"
	"github.com/probewatch/probewatch/internal/evaluate"
	"github.com/probewatch/probewatch/internal/jobs"
	"github.com/probewatch/probewatch/internal/logging"
	"github.com/probewatch/probewatch/internal/queue"
	"github.com/probewatch/probewatch/internal/scheduler"
	"github.com/probewatch/probewatch/internal/store"
	"github.com/probewatch/probewatch/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("database handle unavailable", zap.Error(err))
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	st := store.New(db)
	q := queue.New(db)

	// Recover jobs left in running state by a previous crash.
	if n, err := q.RequeueStale(context.Background()); err != nil {
		logger.Warn("stale job recovery failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued stale jobs", zap.Int64("count", n))
	}

	// Check executors
	validator := checks.NewTargetValidator(cfg.AllowPrivateIPs)
	var runner checks.ScriptRunner
	if cfg.RunnerURL != "" {
		runner = checks.NewHTTPScriptRunner(cfg.RunnerURL)
	}
	registry := checks.NewRegistry(checks.RegistryOptions{
		Validator:    validator,
		Runner:       runner,
		SnippetBytes: cfg.MaxBodySnippetBytes,
	})

	// Alert delivery
	var notifier alerting.Notifier
	if cfg.NotifyURL != "" {
		notifier = alerting.NewHTTPNotifier(cfg.NotifyURL)
	} else {
		notifier = &alerting.LogNotifier{Logger: logger}
	}
	alerts := alerting.NewEngine(notifier, st, logger)

	evaluator := evaluate.New(st, alerts, logger)

	// Recurring schedule
	sched := scheduler.New(q, st, logger)
	if err := sched.ReloadAll(context.Background()); err != nil {
		logger.Fatal("schedule reload failed", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// Worker pool
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool := worker.NewPool(q, st, registry, evaluator, worker.Timeouts{
		HTTP: cfg.DefaultHTTPTimeout,
		Ping: cfg.DefaultPingTimeout,
		Port: cfg.DefaultPortTimeout,
	}, cfg.WorkerCapacity, logger)

	workersDone := make(chan struct{})
	go func() {
		pool.Run(workerCtx)
		close(workersDone)
	}()

	// Housekeeping sweeps
	retention := jobs.NewRetention(st, q, cfg.ResultRetentionDays, logger)
	retention.Start()
	defer retention.Stop()

	// Control API
	router := api.NewRouter(cfg, st, sched, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	stopWorkers()
	select {
	case <-workersDone:
	case <-ctx.Done():
		logger.Warn("workers did not drain before deadline")
	}

	logger.Info("server exited")
}
