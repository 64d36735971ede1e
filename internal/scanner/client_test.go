package scanner_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/scanner"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

func TestNotifyClient_ScanFinished_SendsExpectedMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan protocol.ScanNotification, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		var n protocol.ScanNotification
		reader := bufio.NewReader(nc)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		json.Unmarshal([]byte(line), &n)
		received <- n
	}()

	client := scanner.NewNotifyClient(ln.Addr().String())
	if err := client.ScanFinished(context.Background(), 42, "example.com"); err != nil {
		t.Fatalf("ScanFinished: %v", err)
	}

	select {
	case n := <-received:
		if n.Notification.Scan == nil {
			t.Fatal("expected a scan notification")
		}
		if n.Notification.Scan.RequestID != 42 || n.Notification.Scan.Domain != "example.com" {
			t.Errorf("scan notification = %+v, want request_id=42 domain=example.com", n.Notification.Scan)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive notification in time")
	}
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []int64
}

func (s *fakeScheduler) Run(_ context.Context, requestID int64, _ string, _ int, _ map[string]struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, requestID)
	return nil
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestRunDispatchLoop_RunsDeliveredTaskThenStopsOnShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var served atomic.Bool
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		conn := protocol.NewConn(nc)

		var req protocol.TaskRequest
		if err := conn.ReadMessage(&req); err != nil {
			return
		}
		conn.WriteMessage(protocol.NewTaskReply("example.com", 1))

		if err := conn.ReadMessage(&req); err != nil {
			return
		}
		conn.WriteMessage(protocol.NewShutdownReply())
		served.Store(true)
		ln.Close() // refuse the reconnect attempt so the loop backs off instead of blocking forever
	}()

	sched := &fakeScheduler{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	scanner.RunDispatchLoop(ctx, ln.Addr().String(), sched, testLogger())

	if sched.count() != 1 {
		t.Errorf("scheduler called %d times, want 1", sched.count())
	}
	if !served.Load() {
		t.Error("fake coordinator did not reach the shutdown leg")
	}
}
