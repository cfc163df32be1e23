// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kudos-app/kudos/internal/auth"
	"github.com/kudos-app/kudos/internal/auth/postgres"
	"github.com/kudos-app/kudos/internal/config"
	"github.com/kudos-app/kudos/internal/logging"
	"github.com/kudos-app/kudos/internal/observability"
	"github.com/kudos-app/kudos/internal/store"
	"github.com/kudos-app/kudos/internal/web"
	"github.com/kudos-app/kudos/pkg/errutil"
)

const (
	serviceName       = "kudos"
	readHeaderTimeout = 10 * time.Second
	readinessTimeout  = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server for the login, registration and logout flows,
plus the metrics and health server when metrics_addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps starts the server with injectable dependencies and
// blocks until ctx is cancelled, a signal arrives or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(config.ValidateOptions{RequireDatabase: true, RequireSecret: true}); err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, deps.LogWriter)
	slog.SetDefault(logger)

	logger.Info("starting kudos",
		"env", cfg.Env,
		"listen", cfg.Listen,
		"database_url", cfg.Redacted().DatabaseURL,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL, store.ConnectConfig{
		MaxConns: cfg.DB.MaxConns,
		Attempts: cfg.DB.ConnectAttempts,
		Backoff:  cfg.DB.ConnectBackoff,
		Logger:   logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := autoMigrate(cfg.DatabaseURL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    cfg.Hash.Time,
		Memory:  cfg.Hash.MemoryKiB,
		Threads: cfg.Hash.Threads,
		SaltLen: auth.DefaultArgon2Params.SaltLen,
		KeyLen:  auth.DefaultArgon2Params.KeyLen,
	})
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secrets: cfg.SessionSecrets(),
		Secure:  cfg.IsProduction(),
		MaxAge:  cfg.Session.MaxAge,
	})
	if err != nil {
		return err
	}

	var ready atomic.Bool
	readiness := func() bool {
		if !ready.Load() {
			return false
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	}

	var (
		obsServer ObservabilityServer
		obsErrCh  <-chan error
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, readiness, logger)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopObservability(obsServer, cfg.ShutdownTimeout, logger)
		metrics = obsServer.Metrics()
	} else {
		// Counters still back the recorder interfaces; nothing scrapes them.
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	svc, err := auth.NewService(postgres.NewUserRepository(pool), sessions, hasher,
		auth.WithLogger(logger),
		auth.WithRecorder(metrics),
	)
	if err != nil {
		return err
	}

	handler := web.NewHandler(svc,
		web.WithLogger(logger),
		web.WithRequestRecorder(metrics),
	)

	listener, err := deps.ListenerFactory("tcp", cfg.Listen)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Listen).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	ready.Store(true)
	addr := listener.Addr().String()
	logger.Info("kudos ready", "addr", addr)
	cmd.Printf("Kudos listening on %s\n", addr)
	deps.OnReady(addr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case serveErr := <-errCh:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	case obsErr, ok := <-obsErrCh:
		if ok && obsErr != nil {
			runErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(obsErr)
		}
	}

	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogErrorContext(shutdownCtx, logger, "http server shutdown failed", err)
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}

// autoMigrate applies pending migrations before the server accepts traffic.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) (err error) {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

func stopObservability(s ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}
