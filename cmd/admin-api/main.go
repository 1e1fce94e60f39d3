package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/upb/rcfms-admin/app"
	"github.com/upb/rcfms-admin/config"
	"github.com/upb/rcfms-admin/internal/observability"
	"github.com/upb/rcfms-admin/routes"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admin-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}

	if err := bootstrapAdmin(ctx, deps, cfg); err != nil {
		_ = deps.Close(context.Background())
		return err
	}

	srv := newHTTPServer(cfg, routes.SetupRoutes(deps))
	var metricsSrv *http.Server
	if cfg.Observability.MetricsEnabled {
		metricsSrv = newMetricsServer(cfg, deps.Metrics.Handler())
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("admin api listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
			zap.String("environment", cfg.Environment))
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Warn("dependency shutdown", zap.Error(err))
	}

	logger.Info("admin api stopped")
	return runErr
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "rcfms-admin")), nil
}

// bootstrapAdmin seeds the first super admin on an empty store. The temporary
// password goes out through the notifiers and is printed to stdout only when
// BOOTSTRAP_PRINT_PASSWORD is set.
func bootstrapAdmin(ctx context.Context, deps *app.Dependencies, cfg *config.Config) error {
	profile, secret, err := deps.BootstrapAdmin(ctx)
	if err != nil {
		deps.Logger.Error("failed to bootstrap super admin", zap.Error(err))
		return err
	}
	if profile == nil {
		return nil
	}

	deps.Logger.Info("bootstrap super admin created",
		zap.String("profile_id", profile.ID.String()),
		zap.String("email", profile.Email))
	if cfg.Bootstrap.PrintPassword {
		fmt.Fprintf(os.Stdout, "bootstrap super admin %s temporary password: %s\n", profile.Email, secret.Reveal())
	}
	return nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

func newMetricsServer(cfg *config.Config, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
