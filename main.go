package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/patrickmn/go-cache"

	database "github.com/wanderfolk/go-trip-assistant/app/db"
	appLogger "github.com/wanderfolk/go-trip-assistant/app/logger"
	appMiddleware "github.com/wanderfolk/go-trip-assistant/app/middleware"
	"github.com/wanderfolk/go-trip-assistant/app/observability/metrics"
	"github.com/wanderfolk/go-trip-assistant/app/tracer"
	"github.com/wanderfolk/go-trip-assistant/config"
	"github.com/wanderfolk/go-trip-assistant/internal/api/changes"
	"github.com/wanderfolk/go-trip-assistant/internal/api/mapping"
	"github.com/wanderfolk/go-trip-assistant/internal/api/proposal"
	"github.com/wanderfolk/go-trip-assistant/internal/api/resolver"
	"github.com/wanderfolk/go-trip-assistant/internal/api/trip"
	"github.com/wanderfolk/go-trip-assistant/internal/api/tripctx"
	appRouter "github.com/wanderfolk/go-trip-assistant/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Metrics.Port)
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	aiClient, err := proposal.NewAIClient(ctx, cfg.Gemini.Model)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Dependency Injection ---
	mapsClient := mapping.NewHTTPClient(cfg.Mapping.BaseURL, cfg.Mapping.Timeout)
	resolverCache := cache.New(cfg.Resolver.CacheTTL, cfg.Resolver.CacheCleanup)
	resolverRepo := resolver.NewPostgresRepository(logger)
	resolverService := resolver.NewServiceImpl(resolverRepo, mapsClient, resolverCache, logger)

	tripRepo := trip.NewPostgresRepository(logger)
	contextService := tripctx.NewServiceImpl(pool, tripRepo, logger)

	proposalService := proposal.NewServiceImpl(aiClient, cfg.Gemini.Temperature, logger)
	proposalHandler := proposal.NewHandler(contextService, proposalService, logger)

	engine := changes.NewEngineImpl(pool, tripRepo, resolverService, logger)
	changesHandler := changes.NewHandler(engine, logger)

	// --- Router Setup ---
	mainRouter := appRouter.SetupRouter(&appRouter.Config{
		ProposalHandler:        proposalHandler,
		ChangesHandler:         changesHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate,
	})

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
