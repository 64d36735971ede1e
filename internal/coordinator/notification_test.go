package coordinator_test

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/akowasch/domainsearch/internal/coordinator"
	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/repository"
)

type fakeNotificationStore struct {
	mu sync.Mutex

	validRequests map[int64]bool

	updatedRequestState   domain.RequestState
	updatedRequestComment string
	updateRequestCalled   bool

	updatedDomainState   domain.Access
	updatedDomainComment string
	updateDomainCalled   bool
}

func (s *fakeNotificationStore) IsRequestValid(_ context.Context, requestID int64, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validRequests[requestID], nil
}

func (s *fakeNotificationStore) UpdateRequest(_ context.Context, _ int64, state domain.RequestState, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateRequestCalled = true
	s.updatedRequestState = state
	s.updatedRequestComment = comment
	return nil
}

func (s *fakeNotificationStore) UpdateDomain(_ context.Context, _ string, state domain.Access, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateDomainCalled = true
	s.updatedDomainState = state
	s.updatedDomainComment = comment
	return nil
}

func (s *fakeNotificationStore) InsertDomain(context.Context, string) (int64, error) { panic("unused") }
func (s *fakeNotificationStore) FindDomain(context.Context, string) (*repository.FoundDomain, error) {
	panic("unused")
}
func (s *fakeNotificationStore) InsertRequest(context.Context, int64) (int64, error) {
	panic("unused")
}
func (s *fakeNotificationStore) LatestRequestFor(context.Context, int64) (*repository.LatestRequest, error) {
	panic("unused")
}
func (s *fakeNotificationStore) InsertModuleRecord(context.Context, int64, string, []byte) error {
	panic("unused")
}
func (s *fakeNotificationStore) Exec(context.Context, string) error { panic("unused") }
func (s *fakeNotificationStore) GetModuleVersion(context.Context, string) (int, bool, error) {
	panic("unused")
}
func (s *fakeNotificationStore) SetModuleVersion(context.Context, string, int) error {
	panic("unused")
}
func (s *fakeNotificationStore) InsertError(context.Context, int64, string, string) error {
	panic("unused")
}
func (s *fakeNotificationStore) Ping(context.Context) error { panic("unused") }
func (s *fakeNotificationStore) Close()                     {}

func TestNotificationEndpoint_ScanFinished_ValidRequest_PushesReviewTask(t *testing.T) {
	store := &fakeNotificationStore{validRequests: map[int64]bool{1: true}}
	reviewQueue := queue.New(queue.ReviewTaskCodec)
	endpoint := coordinator.NewNotificationEndpoint(store, reviewQueue, testLogger())

	ln := listenLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go endpoint.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	n := protocol.NewScanFinished(1, "example.com")
	b, _ := json.Marshal(n)
	b = append(b, '\n')
	if _, err := conn.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for reviewQueue.Size() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reviewQueue.Size() != 1 {
		t.Fatalf("reviewQueue Size = %d, want 1", reviewQueue.Size())
	}
	if !store.updateRequestCalled || store.updatedRequestState != domain.RequestScanned {
		t.Errorf("UpdateRequest state = %q, called=%v, want scanned/true", store.updatedRequestState, store.updateRequestCalled)
	}
}

func TestNotificationEndpoint_ScanFinished_InvalidRequest_DropsSilently(t *testing.T) {
	store := &fakeNotificationStore{validRequests: map[int64]bool{}}
	reviewQueue := queue.New(queue.ReviewTaskCodec)
	endpoint := coordinator.NewNotificationEndpoint(store, reviewQueue, testLogger())

	ln := listenLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go endpoint.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	n := protocol.NewScanFinished(99, "unknown.com")
	b, _ := json.Marshal(n)
	b = append(b, '\n')
	conn.Write(b)
	conn.Close()

	time.Sleep(50 * time.Millisecond)
	if reviewQueue.Size() != 0 {
		t.Errorf("reviewQueue Size = %d, want 0 for an invalid request", reviewQueue.Size())
	}
	if store.updateRequestCalled {
		t.Error("UpdateRequest should not be called for an invalid request")
	}
}

func TestNotificationEndpoint_ReviewFinished_ValidAccess_UpdatesRequestAndDomain(t *testing.T) {
	store := &fakeNotificationStore{validRequests: map[int64]bool{1: true}}
	reviewQueue := queue.New(queue.ReviewTaskCodec)
	endpoint := coordinator.NewNotificationEndpoint(store, reviewQueue, testLogger())

	ln := listenLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go endpoint.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	n := protocol.NewReviewFinished(1, "example.com", "denied", "malware")
	b, _ := json.Marshal(n)
	b = append(b, '\n')
	conn.Write(b)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for !store.updateDomainCalled && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.updatedRequestState != domain.RequestDenied || store.updatedRequestComment != "malware" {
		t.Errorf("UpdateRequest = (%q, %q), want (denied, malware)", store.updatedRequestState, store.updatedRequestComment)
	}
	if store.updatedDomainState != domain.AccessDenied || store.updatedDomainComment != "malware" {
		t.Errorf("UpdateDomain = (%q, %q), want (denied, malware)", store.updatedDomainState, store.updatedDomainComment)
	}
}

func TestNotificationEndpoint_ReviewFinished_InvalidAccess_Dropped(t *testing.T) {
	store := &fakeNotificationStore{validRequests: map[int64]bool{1: true}}
	reviewQueue := queue.New(queue.ReviewTaskCodec)
	endpoint := coordinator.NewNotificationEndpoint(store, reviewQueue, testLogger())

	ln := listenLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go endpoint.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	n := protocol.NewReviewFinished(1, "example.com", "maybe", "")
	b, _ := json.Marshal(n)
	b = append(b, '\n')
	conn.Write(b)
	conn.Close()

	time.Sleep(50 * time.Millisecond)
	if store.updateRequestCalled {
		t.Error("UpdateRequest should not be called for an invalid access value")
	}
}
