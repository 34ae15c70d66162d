package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/database"
	"github.com/SwiftTim/hub2/internal/handler"
	"github.com/SwiftTim/hub2/internal/logger"
	"github.com/SwiftTim/hub2/internal/report"
	"github.com/SwiftTim/hub2/internal/repository"
	"github.com/SwiftTim/hub2/internal/router"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/SwiftTim/hub2/internal/validator"
	"github.com/SwiftTim/hub2/internal/watermark"
	"github.com/SwiftTim/hub2/internal/worker"
	"github.com/rs/zerolog"
)

// streamLeaseTTL bounds how long a crashed instance can block a student's
// reconnect.
const streamLeaseTTL = 30 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Academic Hub")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.ReportTimezone).Msg("Unknown report timezone, using UTC")
		loc = time.UTC
	}

	signer, err := watermark.NewSigner(cfg.WatermarkSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid watermark secret")
	}

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
	assessmentRepo := repository.NewAssessmentRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	reportDataRepo := repository.NewReportDataRepository(pool)
	securityLogRepo := repository.NewSecurityLogRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	publisher := service.NewSecurityLogPublisher(rdb, cfg.SecurityLogBuffer, log)
	attemptService := service.NewAttemptService(assessmentRepo, enrollmentRepo, attemptRepo, clock.Real(), cfg.AutosaveDebounce, log)
	reportService := service.NewReportService(
		reportDataRepo, reportRepo,
		report.NewRenderer(loc),
		watermark.New(signer, loc),
		cfg.InstitutionID, cfg.FrontendURL,
		clock.Real(), log,
	)
	monitorService := service.NewMonitorService(monitorRepo)
	streamGuard := service.NewStreamGuard(rdb, streamLeaseTTL)

	// ─── Initialize Handlers ──────────────────────────────────────────
	checks := map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	handlers := &router.Handlers{
		Assessment: handler.NewAssessmentHandler(attemptService, publisher, log, cfg.AllowedOrigins),
		Report:     handler.NewReportHandler(reportService, log),
		Monitor:    handler.NewMonitorHandler(rdb, attemptService, monitorService, log),
		System:     handler.NewSystemHandler(checks, rdb, publisher.Dropped, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	securityLogWorker := worker.NewSecurityLogWorker(securityLogRepo, rdb, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		publisher.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		securityLogWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, streamGuard, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 1. Stop accepting new HTTP requests. Open streams close and submit
	// their pending saves through the publisher before it stops.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the publisher and the worker, then wait for both to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
