package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stowage/internal/app"
	"stowage/internal/auth"
	"stowage/internal/config"
	"stowage/internal/handler"
	"stowage/internal/middleware"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("STOWAGE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"object_store", cfg.ObjectStore.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		_ = application.Close()
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer application.Close()

	application.Registry.Start(ctx)
	defer application.Registry.Stop()

	// Authentication: JWKS in every environment that configures it, the
	// X-Owner-ID header otherwise (dev/test only, enforced by config validation)
	var authMiddleware func(http.Handler) http.Handler
	if cfg.Auth.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.Auth.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		authMiddleware = middleware.AuthMiddleware(jwtVerifier, logger)
	} else {
		logger.Warn("DEV MODE: trusting the " + middleware.OwnerHeader + " header for authentication")
		authMiddleware = middleware.HeaderAuthMiddleware()
	}

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.HealthCheck)
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", application.Metrics.Handler())
	}
	handler.Register(mux,
		handler.NewProjectHandler(application.Projects, logger),
		handler.NewFolderHandler(application.Hierarchy, application.Aggregator, logger),
		handler.NewFileHandler(application.Hierarchy, logger),
		handler.NewVerificationHandler(application.Verification, logger),
	)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Logging → Recovery → Auth → Routes
	h = authMiddleware(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.OwnerHeader},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // synchronous verifications of large trees can run for minutes
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := application.Verification.Shutdown(shutdownCtx); err != nil {
		logger.Error("background verifications did not finish", "error", err)
	}
	logger.Info("server stopped")
}
