// Package module defines the scanner-internal module capability set
// from spec.md §6 and the ModuleRegistry that loads a fixed module
// set, validates its dependency DAG, and reconciles stored versions.
package module

import (
	"context"
	"fmt"
)

// QueryKind selects which statement Queries returns.
type QueryKind string

const (
	QueryCreate QueryKind = "create"
	QueryInsert QueryKind = "insert"
	QuerySelect QueryKind = "select"
)

// Module is the capability set every data-source probe presents.
// Run must be idempotent under re-execution with the same
// (request_id, domain).
type Module interface {
	Name() string
	Version() int
	Dependencies() []string
	Queries(kind QueryKind) []string
	Run(ctx context.Context, requestID int64, domainName string, attempt int) error
}

// Error is the failure a module run reports. Rerun distinguishes a
// transient failure (worth retrying) from a permanent one. Any other
// error returned from Run is treated as permanent, per spec.md §4.7.
type Error struct {
	Rerun   bool
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(rerun bool, format string, args ...any) *Error {
	return &Error{Rerun: rerun, Message: fmt.Sprintf(format, args...)}
}

// Factory builds one Module instance, used by the registration table
// in spec.md §9's "explicit registration table" design note in place
// of the reference's filesystem discovery.
type Factory func() Module
