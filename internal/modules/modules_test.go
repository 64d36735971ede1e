package modules_test

import (
	"context"
	"testing"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/modules"
	"github.com/akowasch/domainsearch/internal/repository"
)

type fakeStore struct {
	records []recordedPayload
}

type recordedPayload struct {
	requestID int64
	module    string
	payload   []byte
}

func (s *fakeStore) InsertModuleRecord(_ context.Context, requestID int64, module string, payload []byte) error {
	s.records = append(s.records, recordedPayload{requestID, module, payload})
	return nil
}

func (s *fakeStore) InsertDomain(context.Context, string) (int64, error) { panic("unused") }
func (s *fakeStore) UpdateDomain(context.Context, string, domain.Access, string) error {
	panic("unused")
}
func (s *fakeStore) FindDomain(context.Context, string) (*repository.FoundDomain, error) {
	panic("unused")
}
func (s *fakeStore) InsertRequest(context.Context, int64) (int64, error) { panic("unused") }
func (s *fakeStore) LatestRequestFor(context.Context, int64) (*repository.LatestRequest, error) {
	panic("unused")
}
func (s *fakeStore) UpdateRequest(context.Context, int64, domain.RequestState, string) error {
	panic("unused")
}
func (s *fakeStore) IsRequestValid(context.Context, int64, string) (bool, error) { panic("unused") }
func (s *fakeStore) Exec(context.Context, string) error                         { return nil }
func (s *fakeStore) GetModuleVersion(context.Context, string) (int, bool, error) {
	return 0, false, nil
}
func (s *fakeStore) SetModuleVersion(context.Context, string, int) error { return nil }
func (s *fakeStore) InsertError(context.Context, int64, string, string) error {
	panic("unused")
}
func (s *fakeStore) Ping(context.Context) error { panic("unused") }
func (s *fakeStore) Close()                     {}

var testLimits = modules.Limits{APIKey: "", RatePerSec: 1000, Burst: 1000}

func TestDNSResolver_Run_RecordsPayload(t *testing.T) {
	store := &fakeStore{}
	m := modules.NewDNSResolver(store, testLimits)

	if err := m.Run(context.Background(), 1, "example.com", 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	if store.records[0].module != "DNSResolver" || store.records[0].requestID != 1 {
		t.Errorf("recorded = %+v, want module=DNSResolver request_id=1", store.records[0])
	}
}

func TestASN_DeclaresDNSResolverDependency(t *testing.T) {
	store := &fakeStore{}
	m := modules.NewASN(store, testLimits)

	deps := m.Dependencies()
	if len(deps) != 1 || deps[0] != "DNSResolver" {
		t.Errorf("ASN.Dependencies() = %v, want [DNSResolver]", deps)
	}
}

func TestDomainAge_DeclaresWhoisDependency(t *testing.T) {
	store := &fakeStore{}
	m := modules.NewDomainAge(store, testLimits)

	deps := m.Dependencies()
	if len(deps) != 1 || deps[0] != "Whois" {
		t.Errorf("DomainAge.Dependencies() = %v, want [Whois]", deps)
	}
}

func TestTypo_DeclaresSpellCheckerDependency(t *testing.T) {
	store := &fakeStore{}
	m := modules.NewTypo(store, testLimits)

	deps := m.Dependencies()
	if len(deps) != 1 || deps[0] != "SpellChecker" {
		t.Errorf("Typo.Dependencies() = %v, want [SpellChecker]", deps)
	}
}

func TestQueries_CreateStatementNamesModuleTable(t *testing.T) {
	store := &fakeStore{}
	m := modules.NewWhois(store, testLimits)

	stmts := m.Queries(module.QueryCreate)
	if len(stmts) != 1 {
		t.Fatalf("QueryCreate statements = %d, want 1", len(stmts))
	}
	if !contains(stmts[0], "module_Whois") {
		t.Errorf("CREATE statement = %q, want it to reference module_Whois", stmts[0])
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestRegistrations_NamesMatchModuleNameAndAreUnique(t *testing.T) {
	store := &fakeStore{}
	regs := modules.Registrations(store, testLimits)

	seen := make(map[string]bool, len(regs))
	for _, reg := range regs {
		if seen[reg.Name] {
			t.Errorf("duplicate registration name %q", reg.Name)
		}
		seen[reg.Name] = true

		m := reg.Factory()
		if m.Name() != reg.Name {
			t.Errorf("registration %q factory built a module named %q", reg.Name, m.Name())
		}
	}
	if len(regs) != 18 {
		t.Errorf("Registrations returned %d entries, want 18", len(regs))
	}
}

func TestRegistrations_FormValidDependencyGraph(t *testing.T) {
	store := &fakeStore{}
	_, err := module.NewRegistry(context.Background(), modules.Registrations(store, testLimits), nil, store)
	if err != nil {
		t.Fatalf("the full registered module set must form a valid DAG: %v", err)
	}
}

func TestNewBase_RateLimitIsDrivenByConfiguredLimits(t *testing.T) {
	store := &fakeStore{}
	restrictive := modules.Limits{RatePerSec: 0.001, Burst: 1}
	m := modules.NewDNSResolver(store, restrictive)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := m.Run(ctx, 1, "example.com", 1); err != nil {
		t.Fatalf("first Run should consume the burst token without waiting: %v", err)
	}
	if err := m.Run(ctx, 1, "example.com", 1); err == nil {
		t.Fatal("second Run should block on the configured rate limit and time out, got nil error")
	}
}
