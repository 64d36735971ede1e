package domain_test

import (
	"sort"
	"testing"

	"github.com/akowasch/domainsearch/internal/domain"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"  example.com  ", "example.com"},
		{"EXAMPLE.COM\t", "example.com"},
		{"already-normal.org", "already-normal.org"},
	}
	for _, tt := range tests {
		if got := domain.NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"example.com", true},
		{"sub.example.com", true},
		{"a.co", true},
		{"xn--ls8h.example", true},
		{"", false},
		{"no-dot", false},
		{"-leadinghyphen.com", false},
		{"trailinghyphen-.com", false},
		{"double..dot.com", false},
		{".leadingdot.com", false},
		{"has space.com", false},
		{"UPPER.COM", false},
	}
	for _, tt := range tests {
		if got := domain.IsValidName(tt.name); got != tt.want {
			t.Errorf("IsValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRequestState_Terminal(t *testing.T) {
	tests := []struct {
		state domain.RequestState
		want  bool
	}{
		{domain.RequestQueued, false},
		{domain.RequestScanned, false},
		{domain.RequestPermitted, true},
		{domain.RequestDenied, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRetryTask_ModuleNames_Sortedness(t *testing.T) {
	task := domain.RetryTask{
		RerunModules: map[string]struct{}{
			"whois": {}, "dns_resolver": {}, "asn": {},
		},
	}
	names := task.ModuleNames()
	if len(names) != 3 {
		t.Fatalf("ModuleNames returned %d entries, want 3", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("ModuleNames = %v, want sorted", names)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"whois", "dns_resolver", "asn"} {
		if !seen[want] {
			t.Errorf("ModuleNames missing %q", want)
		}
	}
}

func TestScanTaskAndReviewTask_Ref(t *testing.T) {
	st := domain.ScanTask{RequestID: 7, Domain: "example.com"}
	id, name := st.Ref()
	if id != 7 || name != "example.com" {
		t.Errorf("ScanTask.Ref() = (%d, %q), want (7, \"example.com\")", id, name)
	}

	rt := domain.ReviewTask{RequestID: 9, Domain: "other.org"}
	id, name = rt.Ref()
	if id != 9 || name != "other.org" {
		t.Errorf("ReviewTask.Ref() = (%d, %q), want (9, \"other.org\")", id, name)
	}
}
