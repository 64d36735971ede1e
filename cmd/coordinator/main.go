package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akowasch/domainsearch/config"
	"github.com/akowasch/domainsearch/internal/adminhttp"
	"github.com/akowasch/domainsearch/internal/coordinator"
	"github.com/akowasch/domainsearch/internal/health"
	"github.com/akowasch/domainsearch/internal/infrastructure/postgres"
	applog "github.com/akowasch/domainsearch/internal/log"
	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/pidfile"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger := applog.New(cfg.Env, cfg.SlogLevel())

	if err := pidfile.Write(cfg.CoordinatorPIDPath); err != nil {
		logger.Error("pid file", "error", err)
		os.Exit(1)
	}
	defer pidfile.Remove(cfg.CoordinatorPIDPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect", "error", err)
		os.Exit(1)
	}
	store := postgres.New(pool)

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema setup", "error", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{"persistence": store}, logger, prometheus.DefaultRegisterer)

	coord := coordinator.New(store,
		coordinator.Addrs{
			Rating:         addr(cfg.RatingHost, cfg.RatingPort),
			ScanDispatch:   addr(cfg.ScanDispatchHost, cfg.ScanDispatchPort),
			Notify:         addr(cfg.NotifyHost, cfg.NotifyPort),
			ReviewDispatch: addr(cfg.ReviewDispatchHost, cfg.ReviewDispatchPort),
		},
		coordinator.SnapshotPaths{
			ScanQueue:   cfg.ScanQueueSnapshotPath,
			ReviewQueue: cfg.ReviewQueueSnapshotPath,
		},
		time.Duration(cfg.DomainExpirationDays)*24*time.Hour,
		time.Duration(cfg.RequestExpirationDays)*24*time.Hour,
		time.Duration(cfg.DispatchPullTimeoutSec)*time.Second,
		logger,
	)

	if err := coord.Restore(ctx); err != nil {
		logger.Error("queue restore", "error", err)
		os.Exit(1)
	}

	adminSrv := &http.Server{
		Addr:    ":" + cfg.AdminPort,
		Handler: adminhttp.NewRouter(checker, logger),
	}
	go func() {
		logger.Info("admin server started", "port", cfg.AdminPort)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- coord.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("coordinator run", "error", err)
		}
		stop()
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}

	<-errCh
	logger.Info("coordinator shut down")
}

func addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
