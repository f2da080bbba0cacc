// Package wire provides dependency injection for the dlqwatch
// application. It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/adapters/notify"
	"github.com/example/dlqwatch/internal/adapters/sqlite"
	"github.com/example/dlqwatch/internal/adapters/sqs"
	"github.com/example/dlqwatch/internal/adapters/tmux"
	"github.com/example/dlqwatch/internal/app"
	"github.com/example/dlqwatch/internal/config"
	"github.com/example/dlqwatch/internal/core/eligibility"
	"github.com/example/dlqwatch/internal/db"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

var (
	cfg            *config.Config
	logger         *zap.Logger
	backend        secondary.QueueBackend
	sessionRepo    secondary.SessionRepository
	eventLog       *sqlite.EventLog
	emitter        *app.Emitter
	supervisor     *app.Supervisor
	orchestrator   *app.Orchestrator
	monitorService primary.MonitorService
	once           sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the shared logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// Backend returns the queue backend.
func Backend() secondary.QueueBackend {
	once.Do(initServices)
	return backend
}

// MonitorService returns the singleton MonitorService instance.
func MonitorService() primary.MonitorService {
	once.Do(initServices)
	return monitorService
}

// Orchestrator returns the singleton orchestration loop.
func Orchestrator() *app.Orchestrator {
	once.Do(initServices)
	return orchestrator
}

// Close flushes the logger and closes the database. Call on shutdown.
func Close() {
	if logger != nil {
		_ = logger.Sync()
	}
	db.Close()
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.LoadOrDefault()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger = newLogger()

	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Secondary adapters.
	sessionRepo = sqlite.NewSessionRepository(database)
	eventLog = sqlite.NewEventLog(database)

	backend, err = sqs.New(context.Background(), sqs.Config{
		Region:        cfg.AWS.Region,
		Profile:       cfg.AWS.Profile,
		Endpoint:      cfg.AWS.Endpoint,
		QueuePatterns: cfg.AWS.QueuePatterns,
		CallTimeout:   cfg.AWS.CallTimeout.Std(),
		PeekOldest:    cfg.AWS.PeekOldest,
	}, logger)
	if err != nil {
		log.Fatalf("failed to initialize queue backend: %v", err)
	}

	launcher, err := tmux.NewLauncher(cfg.Worker.Command, cfg.Worker.WorkDir, logger)
	if err != nil {
		log.Fatalf("failed to initialize worker launcher: %v", err)
	}

	// Event fan-out: the log listener is always on; desktop
	// notifications are opt-in.
	emitter = app.NewEmitter(logger)
	emitter.Subscribe("event-log", eventLog)
	if cfg.Notify.Desktop {
		emitter.Subscribe("desktop", notify.NewDesktopNotifier(logger))
	}

	// Services (primary ports implementation).
	policy := eligibility.Policy{
		TargetQueues:  cfg.Monitor.TargetQueues,
		MaxConcurrent: cfg.Monitor.MaxConcurrent,
	}
	supervisor = app.NewSupervisor(sessionRepo, launcher, emitter, app.SupervisorConfig{
		Timeout:       cfg.Monitor.Timeout.Std(),
		Cooldown:      cfg.Monitor.Cooldown.Std(),
		MaxConcurrent: cfg.Monitor.MaxConcurrent,
		Region:        cfg.AWS.Region,
		Profile:       cfg.AWS.Profile,
		Instructions:  cfg.Worker.Instructions,
	}, logger)
	orchestrator = app.NewOrchestrator(backend, app.NewQueueStateRepository(), sessionRepo, supervisor, emitter, app.OrchestratorConfig{
		CheckInterval: cfg.Monitor.CheckInterval.Std(),
		Policy:        policy,
	}, logger)
	monitorService = app.NewMonitorService(backend, sessionRepo, eventLog, supervisor, policy, logger)
}

// newLogger builds the process logger: human-readable in a terminal,
// JSON when DLQWATCH_LOG_JSON is set (daemon under a supervisor).
func newLogger() *zap.Logger {
	if os.Getenv("DLQWATCH_LOG_JSON") != "" {
		return zap.Must(zap.NewProduction())
	}
	devCfg := zap.NewDevelopmentConfig()
	if os.Getenv("DLQWATCH_DEBUG") == "" {
		devCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zap.Must(devCfg.Build())
}
