// Command vaulton runs the vaulton OIDC authorization server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	vaulton "github.com/vaulton/vaulton"
	"github.com/vaulton/vaulton/config"
	"github.com/vaulton/vaulton/instrumentation"
	"github.com/vaulton/vaulton/security"
	"github.com/vaulton/vaulton/server"
	"github.com/vaulton/vaulton/storage"
	"github.com/vaulton/vaulton/storage/memory"
	"github.com/vaulton/vaulton/storage/mysql"
	"github.com/vaulton/vaulton/storage/valkey"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Instrumentation shutdown failed", "error", err)
		}
	}()

	clientStore, authRequestStore, closeStore, err := setupStorage(ctx, cfg, logger, inst)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer closeStore()

	srv, err := server.New(clientStore, authRequestStore, cfg.ServerConfig(), logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	srv.SetAuditor(security.NewAuditor(logger, true))
	srv.SetInstrumentation(inst)

	rateLimiter := security.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	defer rateLimiter.Stop()

	handler := vaulton.NewHandler(srv, logger)
	handler.SetInstrumentation(inst)
	handler.SetRateLimiter(rateLimiter)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting vaulton authorization server",
			"addr", httpServer.Addr,
			"issuer", cfg.Server.Issuer,
			"storage", cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

// setupStorage builds the configured storage backend. The returned
// close function is safe to call once the HTTP server has stopped.
func setupStorage(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	inst *instrumentation.Instrumentation,
) (storage.ClientStore, storage.AuthRequestStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		store := memory.New()
		store.SetLogger(logger)
		store.SetInstrumentation(inst)
		return store, store, store.Stop, nil

	case "valkey":
		store, err := valkey.New(valkey.Config{
			Address:   cfg.Storage.Valkey.Address,
			Password:  cfg.Storage.Valkey.Password,
			DB:        cfg.Storage.Valkey.DB,
			KeyPrefix: cfg.Storage.Valkey.KeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil

	case "mysql":
		store, err := mysql.New(ctx, mysql.Config{
			Host:         cfg.Storage.MySQL.Host,
			Port:         cfg.Storage.MySQL.Port,
			User:         cfg.Storage.MySQL.User,
			Password:     cfg.Storage.MySQL.Password,
			Database:     cfg.Storage.MySQL.Database,
			MaxOpenConns: cfg.Storage.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MySQL.MaxIdleConns,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		return store, store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
