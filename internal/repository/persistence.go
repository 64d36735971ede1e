// Package repository defines the storage-facing interfaces the rest of
// the coordinator and its workers depend on. Concrete implementations
// live under internal/infrastructure.
package repository

import (
	"context"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
)

// PersistenceError wraps any failure returned by a Persistence method,
// per spec: callers surface it, the coordinator aborts startup on
// setup-time failures and logs-and-continues on per-request failures.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// LatestRequest is the shape returned by LatestRequestFor.
type LatestRequest struct {
	State     domain.RequestState
	CreatedAt time.Time
}

// FoundDomain is the shape returned by FindDomain.
type FoundDomain struct {
	ID        int64
	State     domain.Access
	Comment   string
	UpdatedAt time.Time
}

// Persistence is the key-value-like storage surface spec.md §4.1
// describes. Every method is atomic from the caller's perspective; no
// multi-statement transaction is exposed because none is required by
// the design.
type Persistence interface {
	InsertDomain(ctx context.Context, name string) (int64, error)
	UpdateDomain(ctx context.Context, name string, state domain.Access, comment string) error
	FindDomain(ctx context.Context, name string) (*FoundDomain, error)

	InsertRequest(ctx context.Context, domainID int64) (int64, error)
	LatestRequestFor(ctx context.Context, domainID int64) (*LatestRequest, error)
	UpdateRequest(ctx context.Context, id int64, state domain.RequestState, comment string) error

	// IsRequestValid joins request id to domain name: true iff a
	// request with this id exists and references a domain with this
	// exact (already-normalized) name.
	IsRequestValid(ctx context.Context, requestID int64, domainName string) (bool, error)

	InsertModuleRecord(ctx context.Context, requestID int64, module string, payload []byte) error

	// Exec runs one schema-definition statement with no parameters,
	// used by ModuleRegistry to create each module's table at startup.
	Exec(ctx context.Context, statement string) error

	GetModuleVersion(ctx context.Context, module string) (int, bool, error)
	SetModuleVersion(ctx context.Context, module string, version int) error

	InsertError(ctx context.Context, requestID int64, module, comment string) error

	// Ping is used by the readiness health check.
	Ping(ctx context.Context) error

	Close()
}
