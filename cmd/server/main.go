package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/staticnest/staticnest/internal/api"
	"github.com/staticnest/staticnest/internal/auth"
	"github.com/staticnest/staticnest/internal/config"
	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/internal/project"
	"github.com/staticnest/staticnest/internal/ratelimit"
	"github.com/staticnest/staticnest/internal/resolver"
	"github.com/staticnest/staticnest/internal/runtime"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	store, err := metadata.NewStore(cfg.Paths.Metadata, logger)
	if err != nil {
		logger.Fatal("metadata store init failed", zap.Error(err))
	}

	var orch *runtime.Orchestrator
	if cfg.Runtime.Enabled {
		backend, err := runtime.NewDockerBackend(cfg.Runtime.Image, logger)
		if err != nil {
			logger.Fatal("docker backend init failed", zap.Error(err))
		}
		defer backend.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if err := backend.EnsureImage(ctx); err != nil {
			cancel()
			logger.Fatal("serving image unavailable", zap.Error(err))
		}
		cancel()
		logger.Info("runtime backend ready", zap.String("image", cfg.Runtime.Image))

		orch = runtime.NewOrchestrator(backend, store, cfg.Paths.Projects,
			cfg.Server.BaseURL, cfg.Runtime.Timeout, logger)
	} else {
		logger.Info("runtime orchestration disabled")
	}

	projects, err := project.NewManager(store, orch, cfg.Paths.Projects, logger)
	if err != nil {
		logger.Fatal("project manager init failed", zap.Error(err))
	}

	res := resolver.New(store, cfg.Paths.Projects, logger)
	authMgr := auth.NewManager(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.SessionTTL, logger)
	loginLimiter := ratelimit.NewLimiter(cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)

	handler := api.NewHandler(projects, logger)
	authHandler := api.NewAuthHandler(authMgr, cfg.Auth.SessionTTL, logger)
	publicHandler := api.NewPublicHandler(projects, res, logger)

	router := api.SetupRoutes(handler, authHandler, publicHandler, authMgr, loginLimiter, cfg.Server.TrustProxyHeader, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
