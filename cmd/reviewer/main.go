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
	"github.com/akowasch/domainsearch/internal/pidfile"
	"github.com/akowasch/domainsearch/internal/reviewer"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger := applog.New(cfg.Env, cfg.SlogLevel())

	if err := pidfile.Write(cfg.ReviewerPIDPath); err != nil {
		logger.Error("pid file", "error", err)
		os.Exit(1)
	}
	defer pidfile.Remove(cfg.ReviewerPIDPath)

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
		"coordinator": health.DialPinger{Addr: fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.ReviewDispatchPort)},
	}, logger, prometheus.DefaultRegisterer)

	policy := reviewer.DefaultPolicy{Store: store}

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

	go reviewer.RunLoop(ctx,
		fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.ReviewDispatchPort),
		fmt.Sprintf("%s:%d", cfg.CoordinatorDialHost, cfg.NotifyPort),
		policy, logger)

	<-ctx.Done()
	logger.Info("reviewer shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}

	logger.Info("reviewer shut down")
}
