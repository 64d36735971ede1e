// Package health reports process liveness and dependency readiness.
// Unlike the teacher, which only ever has one dependency (its job
// store), a scanner or reviewer process here depends on both
// persistence and a live path back to the coordinator, so Checker
// takes a named set of dependencies rather than a single Pinger.
package health

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger reports whether one dependency is currently reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DialPinger checks reachability by dialing a TCP address. It covers
// dependencies that expose no richer health protocol of their own,
// namely the coordinator endpoints a scanner or reviewer dials.
type DialPinger struct {
	Addr string
}

func (d DialPinger) Ping(ctx context.Context) error {
	var dialer net.Dialer
	nc, err := dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return err
	}
	return nc.Close()
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that every named dependency is reachable.
type Checker struct {
	deps   map[string]Pinger
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker over deps and registers its
// Prometheus gauge. deps maps a dependency label (as it appears in
// HealthResult.Checks and the gauge's "dependency" label) to the
// Pinger that checks it.
func NewChecker(deps map[string]Pinger, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "domainsearch",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		deps:   deps,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status. The
// aggregate Status is "down" if any one dependency is down.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult, len(c.deps)),
	}

	for name, p := range c.deps {
		if err := p.Ping(checkCtx); err != nil {
			c.logger.Warn(name+" health check failed", "error", err)
			result.Status = "down"
			result.Checks[name] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues(name).Set(0)
		} else {
			result.Checks[name] = CheckResult{Status: "up"}
			c.gauge.WithLabelValues(name).Set(1)
		}
	}

	return result
}
