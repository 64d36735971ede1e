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
	"github.com/akowasch/domainsearch/internal/health"
	"github.com/akowasch/domainsearch/internal/infrastructure/postgres"
	applog "github.com/akowasch/domainsearch/internal/log"
	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/modulescheduler"
	"github.com/akowasch/domainsearch/internal/modules"
	"github.com/akowasch/domainsearch/internal/pidfile"
	"github.com/akowasch/domainsearch/internal/retryqueue"
	"github.com/akowasch/domainsearch/internal/scanner"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger := applog.New(cfg.Env, cfg.SlogLevel())

	if err := pidfile.Write(cfg.ScannerPIDPath); err != nil {
		logger.Error("pid file", "error", err)
		os.Exit(1)
	}
	defer pidfile.Remove(cfg.ScannerPIDPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect", "error", err)
		os.Exit(1)
	}
	store := postgres.New(pool)
	defer store.Close()

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"persistence": store,
		"coordinator": health.DialPinger{Addr: fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.ScanDispatchPort)},
	}, logger, prometheus.DefaultRegisterer)

	limits := modules.Limits{
		APIKey:     cfg.ModuleAPIKey,
		RatePerSec: cfg.ModuleRateLimitPerSec,
		Burst:      cfg.ModuleRateLimitBurst,
	}
	registry, err := module.NewRegistry(ctx, modules.Registrations(store, limits), cfg.NorunSet(), store)
	if err != nil {
		logger.Error("module registry", "error", err)
		os.Exit(1)
	}
	logger.Info("module registry loaded", "modules", len(registry.Names()))

	notifier := scanner.NewNotifyClient(fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.NotifyPort))

	rq := retryqueue.New(cfg.RerunThresholdsMin, time.Duration(cfg.RerunQueueCheckDelaySec)*time.Second, logger)
	sched := modulescheduler.New(registry, store, notifier, rq, cfg.RerunCounterMax, logger)
	rq.SetScheduler(sched)

	requestExpiration := time.Duration(cfg.RequestExpirationDays) * 24 * time.Hour
	if _, _, err := rq.Restore(ctx, cfg.RetryQueueSnapshotPath, registry, store, requestExpiration); err != nil {
		logger.Error("retry queue restore", "error", err)
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

	go rq.Run(ctx)
	go scanner.RunDispatchLoop(ctx, fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.ScanDispatchPort), sched, logger)

	<-ctx.Done()
	logger.Info("scanner shutting down")

	if err := rq.Snapshot(cfg.RetryQueueSnapshotPath); err != nil {
		logger.Error("retry queue snapshot", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}

	logger.Info("scanner shut down")
}
