// Package adminhttp exposes process health and metrics over HTTP.
// This is observability, not the out-of-scope operator console: it
// never serves domain data, only liveness/readiness/metrics — the same
// split the teacher draws between its job API and its metrics server.
package adminhttp

import (
	"log/slog"
	"net/http"

	"github.com/akowasch/domainsearch/internal/health"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sloggin "github.com/samber/slog-gin"
)

// NewRouter builds the admin surface for one process (coordinator,
// scanner, or reviewer all use the same shape).
func NewRouter(checker *health.Checker, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(sloggin.New(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})

	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
