// cmd/supervisor/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"supervisor-core/internal/common/cache"
	"supervisor-core/internal/common/config"
	"supervisor-core/internal/common/httpclient"
	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/common/observability"
	"supervisor-core/internal/server"
	"supervisor-core/internal/supervisor"
	"supervisor-core/internal/supervisor/dispatch"
	"supervisor-core/internal/supervisor/routing"
	"supervisor-core/internal/supervisor/synthesis"
	"supervisor-core/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting supervisor core...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("supervisor-core")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Specialist catalog ---
	reg := registry.Default()
	if cfg.Agents.RegistryPath != "" {
		reg, err = registry.Load(cfg.Agents.RegistryPath)
		if err != nil {
			zapLog.Fatal("specialist registry load failed", zap.Error(err))
		}
	}
	zapLog.Info("Specialist registry loaded",
		zap.String("version", reg.Version),
		zap.Int("specialists", len(reg.Specialists)),
	)

	// --- Init Redis response cache with retry ---
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			responseCache, err = cache.New(cfg.Cache)
			if err != nil {
				return err
			}
			return responseCache.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer responseCache.Close()
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Response cache disabled")
	}

	// --- Pipeline wiring ---
	client := httpclient.NewClient()

	agents, err := dispatch.NewAgents(reg, cfg.Agents, client)
	if err != nil {
		zapLog.Fatal("agent wiring failed", zap.Error(err))
	}

	if cfg.Agents.BaseURL == "" {
		zapLog.Warn("AGENT_SERVICE_URL is empty; all specialist calls will degrade to stubs")
	}

	pipeline := supervisor.NewPipeline(
		routing.NewRouter(reg),
		dispatch.NewDispatcher(agents, config.GetDuration(cfg.Agents.Timeout), log),
		synthesis.NewSynthesizer(synthesis.NewGenAIClient(cfg.GenAI, client), log),
		responseCache,
		obs,
		log,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(pipeline, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Supervisor core stopped gracefully")
}
