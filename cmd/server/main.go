package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/database"
	"github.com/attestra/attestra-backend/internal/handler"
	"github.com/attestra/attestra-backend/internal/logger"
	"github.com/attestra/attestra-backend/internal/repository"
	"github.com/attestra/attestra-backend/internal/router"
	"github.com/attestra/attestra-backend/internal/service"
	"github.com/attestra/attestra-backend/internal/validator"
	"github.com/attestra/attestra-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Attestra Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo)
	contentService := service.NewContentService(assessmentRepo, questionRepo, rdb, log)
	notifier := service.NewRedisNotifier(rdb)
	telemetrySink := service.NewRedisTelemetrySink(rdb)
	monitorPublisher := service.NewRedisMonitorPublisher(rdb)

	completionService := service.NewCompletionService(sessionRepo, answerRepo, assessmentRepo, contentService, notifier, log)
	attemptService := service.NewAttemptService(sessionRepo, answerRepo, assessmentRepo, contentService, completionService, log)
	answerService := service.NewAnswerService(sessionRepo, answerRepo, assessmentRepo, telemetrySink, log)
	proctoringService := service.NewProctoringService(sessionRepo, assessmentRepo, monitorPublisher, log)
	analyticsService := service.NewAnalyticsService(sessionRepo, assessmentRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService, userService),
		Attempt:      handler.NewAttemptHandler(attemptService, answerService, completionService, proctoringService, contentService),
		Report:       handler.NewReportHandler(proctoringService, analyticsService, attemptService),
		Monitor:      handler.NewMonitorHandler(rdb, sessionRepo, contentService, log),
		Notification: handler.NewNotificationHandler(notificationRepo),
		WS:           handler.NewWSHandler(attemptService, completionService, proctoringService, log, cfg.AllowedOrigins),
		System:       handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	notificationWorker := worker.NewNotificationWorker(pool, rdb, log)
	telemetryWorker := worker.NewTelemetryWorker(pool, rdb, log)

	go notificationWorker.Start(workerCtx)
	go telemetryWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published assessments into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := contentService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
