package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/database"
	"github.com/dvmnase/onlinecourses-backend/internal/handler"
	"github.com/dvmnase/onlinecourses-backend/internal/logger"
	"github.com/dvmnase/onlinecourses-backend/internal/repository"
	"github.com/dvmnase/onlinecourses-backend/internal/router"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
	"github.com/dvmnase/onlinecourses-backend/internal/validator"
	"github.com/dvmnase/onlinecourses-backend/internal/worker"
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
		Msg("Starting OnlineCourses Backend")

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
	courseRepo := repository.NewCourseRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	deadlineQueue := worker.NewRedisDeadlineQueue(rdb)

	authService := service.NewAuthService(cfg, userRepo)
	courseService := service.NewCourseService(courseRepo)
	contentService := service.NewContentService(contentRepo, courseRepo, enrollmentRepo)
	testService := service.NewTestService(testRepo, courseRepo, enrollmentRepo)
	questionService := service.NewQuestionService(questionRepo, testRepo, courseRepo, enrollmentRepo)
	reviewService := service.NewReviewService(reviewRepo, courseRepo, enrollmentRepo)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo)
	attemptService := service.NewAttemptService(
		attemptRepo, testRepo, questionRepo, enrollmentRepo, deadlineQueue, rdb, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Course:     handler.NewCourseHandler(courseService),
		Content:    handler.NewContentHandler(contentService),
		Test:       handler.NewTestHandler(testService),
		Question:   handler.NewQuestionHandler(questionService),
		Review:     handler.NewReviewHandler(reviewService),
		Enrollment: handler.NewEnrollmentHandler(enrollmentService),
		Attempt:    handler.NewAttemptHandler(attemptService),
		WS:         handler.NewWSHandler(rdb, attemptService, log, cfg.AllowedOrigins),
	}

	// ─── Recover Deadlines, Start Worker ──────────────────────────────
	// Re-arm every timed in-progress attempt BEFORE accepting traffic so
	// deadlines survive restarts.
	if err := attemptService.RearmPendingDeadlines(ctx); err != nil {
		log.Warn().Err(err).Msg("Deadline recovery failed, sweep will cover it")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	deadlineWorker := worker.NewDeadlineWorker(
		deadlineQueue, attemptService, cfg.DeadlinePollInterval, cfg.DeadlineSweepInterval, log,
	)
	go deadlineWorker.Start(workerCtx)

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

	// 2. Stop the deadline worker. Anything mid-flight is retried on the
	// next boot via re-arm and the overdue sweep.
	workerCancel()
	time.Sleep(time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
