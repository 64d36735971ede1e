// Package modules registers the fixed set of data-source probes
// spec.md §4.6 enumerates. Concrete probe logic (HTTP/DNS/port-scan/
// whois calls) is out of scope per spec.md §1; each module here
// performs a minimal stand-in action and stores its output through the
// generic ModuleRecord path (Persistence.InsertModuleRecord), so the
// dependency DAG, retry classification, and scheduler have real work
// to order and fail. Each module's own module_<name> table is created
// at registry startup but not written to.
package modules

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/moduleutil"
	"github.com/akowasch/domainsearch/internal/repository"
)

// Limits bundles the per-module resilience and credential settings
// config.Config's MODULE_API_KEY / MODULE_RATE_LIMIT_* keys (spec.md
// §6) carry, threaded from cmd/scanner into Registrations so every
// module shares one configured rate limit instead of a hardcoded one.
type Limits struct {
	APIKey     string
	RatePerSec float64
	Burst      int
}

// base wires the bits every module needs: a name, a version, a
// declared dependency list, shared resilience helpers, the configured
// credential slot a real probe would authenticate with, and the store
// its Run writes a ModuleRecord to.
type base struct {
	name    string
	version int
	deps    []string
	store   repository.Persistence
	apiKey  string
	limiter *moduleutil.Limiter
	breaker *moduleutil.Breaker
}

func newBase(name string, version int, deps []string, store repository.Persistence, limits Limits) base {
	return base{
		name:    name,
		version: version,
		deps:    deps,
		store:   store,
		apiKey:  limits.APIKey,
		limiter: moduleutil.NewLimiter(limits.RatePerSec, limits.Burst),
		breaker: moduleutil.NewBreaker(name),
	}
}

func (b base) Name() string           { return b.name }
func (b base) Version() int           { return b.version }
func (b base) Dependencies() []string { return b.deps }

func (b base) Queries(kind module.QueryKind) []string {
	switch kind {
	case module.QueryCreate:
		return []string{
			"CREATE TABLE IF NOT EXISTS module_" + b.name + " (" +
				"request_id BIGINT NOT NULL, payload TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL DEFAULT now())",
		}
	case module.QueryInsert:
		return []string{"INSERT INTO module_" + b.name + " (request_id, payload) VALUES ($1, $2)"}
	case module.QuerySelect:
		return []string{"SELECT payload FROM module_" + b.name + " WHERE request_id = $1"}
	default:
		return nil
	}
}

// record stores the probe's opaque output via the generic
// ModuleRecord path (module-specific schemas are out of scope; see
// DESIGN.md).
func (b base) record(ctx context.Context, requestID int64, payload string) error {
	// The payload column is JSONB, so the text is stored as a JSON string.
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.store.InsertModuleRecord(ctx, requestID, b.name, encoded)
}

// probeDelay stands in for real network latency so timing-sensitive
// behavior (rate limiting, breaker trips) has something to exercise.
const probeDelay = 5 * time.Millisecond

// runProbe is the shared Run() body: wait for a rate-limit token, run
// probe through the circuit breaker, and persist whatever payload it
// returns. Any probe failure, or an open breaker, surfaces as a
// transient module.Error (moduleutil.Breaker.Do's classification).
func (b base) runProbe(ctx context.Context, requestID int64, probe func() (string, error)) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload string
	err := b.breaker.Do(b.name, func() error {
		p, err := probe()
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return err
	}

	return b.record(ctx, requestID, payload)
}
