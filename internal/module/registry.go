package module

import (
	"context"
	"fmt"

	"github.com/akowasch/domainsearch/internal/repository"
)

// Registry holds the instantiated, dependency-validated, version-
// reconciled module set for one scanner process.
type Registry struct {
	modules map[string]Module
	norun   map[string]struct{}
}

// Registration pairs a module name with its factory. The fixed set
// enumerated in spec.md §4.6 is supplied by the caller (cmd/scanner),
// keeping the set "known at startup" per spec.md §9.
type Registration struct {
	Name    string
	Factory Factory
}

// NewRegistry instantiates every registration not listed in norun,
// validates the dependency DAG (cycle-free, no missing or excluded
// dependency), and reconciles module versions against store. It
// returns a fatal error for any of the conditions spec.md §4.6 and
// §7 name as startup-fatal.
func NewRegistry(ctx context.Context, regs []Registration, norun map[string]struct{}, store repository.Persistence) (*Registry, error) {
	r := &Registry{
		modules: make(map[string]Module, len(regs)),
		norun:   norun,
	}

	for _, reg := range regs {
		if _, excluded := norun[reg.Name]; excluded {
			continue
		}
		m := reg.Factory()
		if m.Name() != reg.Name {
			return nil, fmt.Errorf("module: registration name %q does not match Module.Name() %q", reg.Name, m.Name())
		}
		for _, stmt := range m.Queries(QueryCreate) {
			if err := store.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("module: schema setup for %q: %w", reg.Name, err)
			}
		}
		r.modules[reg.Name] = m
	}

	if err := r.validateDependencies(); err != nil {
		return nil, err
	}

	if err := r.reconcileVersions(ctx, store); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns a registered module by name, or (nil, false) if absent
// (excluded via norun or never registered).
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Names returns every loaded module's name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	return names
}

// Contains reports whether name is a loaded module, used by the retry
// snapshot validator ("module ∈ registry" per spec.md §4.2).
func (r *Registry) Contains(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// validateDependencies walks every module's transitive dependency
// chain with a DFS-with-"currently on stack" formulation, per
// spec.md §9's redesign note: the reference's shared recursive
// accumulator falsely reports a cycle when two branches share a
// transitive dependency, because it never resets between siblings.
// Each DFS call here gets a fresh visiting set local to that root, and
// only nodes still on the current path count as a cycle.
func (r *Registry) validateDependencies() error {
	for name := range r.modules {
		onStack := make(map[string]bool)
		if err := r.walk(name, onStack); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) walk(name string, onStack map[string]bool) error {
	if onStack[name] {
		return fmt.Errorf("module: cyclic dependency involving %q", name)
	}
	m, ok := r.modules[name]
	if !ok {
		if _, excluded := r.norun[name]; excluded {
			return fmt.Errorf("module: dependency %q is excluded via norun", name)
		}
		return fmt.Errorf("module: unknown dependency %q", name)
	}

	onStack[name] = true
	for _, dep := range m.Dependencies() {
		if err := r.walk(dep, onStack); err != nil {
			return err
		}
	}
	onStack[name] = false
	return nil
}

// reconcileVersions upgrades a stale stored version, inserts a missing
// one, and fails fatally if the store holds a version newer than the
// running code (spec.md §3, §4.6).
func (r *Registry) reconcileVersions(ctx context.Context, store repository.Persistence) error {
	for name, m := range r.modules {
		stored, found, err := store.GetModuleVersion(ctx, name)
		if err != nil {
			return fmt.Errorf("module: version lookup for %q: %w", name, err)
		}
		code := m.Version()

		switch {
		case !found:
			if err := store.SetModuleVersion(ctx, name, code); err != nil {
				return fmt.Errorf("module: version insert for %q: %w", name, err)
			}
		case stored < code:
			if err := store.SetModuleVersion(ctx, name, code); err != nil {
				return fmt.Errorf("module: version upgrade for %q: %w", name, err)
			}
		case stored > code:
			return fmt.Errorf("module: stored version %d for %q exceeds code version %d", stored, name, code)
		}
	}
	return nil
}
