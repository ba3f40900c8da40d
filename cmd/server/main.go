package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tle_arena/internal/api"
	"tle_arena/internal/app/notify"
	"tle_arena/internal/app/service"
	"tle_arena/internal/app/worker"
	"tle_arena/internal/common/security"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"
	"tle_arena/internal/platform/broker"
	"tle_arena/internal/platform/config"
	"tle_arena/internal/platform/database"
	"tle_arena/internal/platform/queue"
	"tle_arena/internal/platform/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration and logging
	config.Load()
	cfg := config.AppConfig
	logger := telemetry.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	security.InitJWT()

	rules, err := scoring.LoadRules(cfg.ScoringRulesFile)
	if err != nil {
		return err
	}

	// 2. Database
	if err := database.Connect(ctx); err != nil {
		return err
	}
	defer database.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, database.DB); err != nil {
			return err
		}
		logger.Info("Database schema applied")
	}

	// 3. Redis
	if err := queue.ConnectRedis(ctx); err != nil {
		return err
	}
	defer queue.CloseRedis()
	judgeQueue := queue.NewJudgeQueue(queue.RDB, cfg.JudgeRequestQueue, cfg.JudgeResultQueue)
	locker := queue.NewLocker(queue.RDB, cfg.JudgeLockPrefix, time.Duration(cfg.JudgeLockTTLSeconds)*time.Second)

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics telemetry.EngineMetrics = telemetry.NoOpMetrics{}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metrics = telemetry.NewPrometheusMetrics(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	tel := service.Telemetry{Logger: logger, Metrics: metrics, Tracer: telemetry.Tracer()}

	// 5. Event notifications
	var notifier service.Notifier = notify.Discard{}
	if cfg.EventsEnabled {
		pub, err := broker.NewPublisher(cfg.NATSURL, cfg.NATSNKeySeed, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = notify.NewPublisher(pub, logger, metrics)
	}

	// 6. Repositories
	db := database.DB
	tx := repository.NewSQLTransactor(db)
	userRepo := repository.NewPgUserRepository(db)
	playerRepo := repository.NewPgPlayerRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	contestRepo := repository.NewPgContestRepository(db)
	participantRepo := repository.NewPgParticipantRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	ledgerRepo := repository.NewPgXPLedgerRepository(db)

	// 7. Services
	ledgerService := service.NewXPLedgerService(playerRepo, ledgerRepo, tx, rules, notifier, tel)
	awardService := service.NewAwardService(contestRepo, participantRepo, submissionRepo, playerRepo, ledgerService, rules, tel)
	judgeService := service.NewJudgeService(submissionRepo, problemRepo, awardService, tx, notifier, tel)
	svc := api.Services{
		Auth:        service.NewAuthService(userRepo, playerRepo, tx, rules.Levels, nil),
		Problems:    service.NewProblemService(problemRepo, rules),
		Submissions: service.NewSubmissionService(submissionRepo, problemRepo, contestRepo, participantRepo, judgeQueue, tx, tel),
		Contests:    service.NewContestService(contestRepo, participantRepo, playerRepo, problemRepo, ledgerService, tx, rules, notifier, tel),
		Leaderboard: service.NewLeaderboardService(contestRepo, participantRepo, playerRepo, tel),
		Players:     service.NewPlayerService(playerRepo, participantRepo, submissionRepo, ledgerRepo, rules, tel),
		Ledger:      ledgerService,
		Judge:       judgeService,
	}

	// 8. Judge result worker
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	resultWorker := worker.NewJudgeResultWorker(judgeQueue, worker.NewRedisLocker(locker), judgeService, logger,
		worker.WithMaxAttempts(cfg.JudgeMaxAttempts))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		resultWorker.Start(workerCtx)
	}()

	// 9. HTTP server
	router := api.NewRouter(svc, api.Options{
		JudgeSecret: cfg.JudgeWebhookSecret,
		JudgeRPS:    cfg.JudgeWebhookRPS,
		JudgeBurst:  cfg.JudgeWebhookBurst,
		Metrics:     metricsHandler,
		HealthChecks: map[string]func(context.Context) error{
			"postgres": database.DB.PingContext,
			"redis":    queue.Ping,
		},
		Logger: logger,
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-workerDone

	logger.Info("Server and worker stopped gracefully")
	return nil
}
