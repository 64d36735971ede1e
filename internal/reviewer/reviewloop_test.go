package reviewer_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/reviewer"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type fixedPolicy struct {
	access  string
	comment string
}

func (p fixedPolicy) Decide(context.Context, int64, string) (string, string) {
	return p.access, p.comment
}

func TestDefaultPolicy_AlwaysPermits(t *testing.T) {
	p := reviewer.DefaultPolicy{}
	access, comment := p.Decide(context.Background(), 1, "example.com")
	if access != "permitted" || comment != "" {
		t.Errorf("Decide = (%q, %q), want (permitted, \"\")", access, comment)
	}
}

func TestRunLoop_DeliversTaskAndReportsVerdict(t *testing.T) {
	dispatchLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen dispatch: %v", err)
	}
	defer dispatchLn.Close()

	notifyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen notify: %v", err)
	}
	defer notifyLn.Close()

	go func() {
		nc, err := dispatchLn.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		conn := protocol.NewConn(nc)

		var req protocol.TaskRequest
		if err := conn.ReadMessage(&req); err != nil {
			return
		}
		conn.WriteMessage(protocol.NewTaskReply("example.com", 7))

		if err := conn.ReadMessage(&req); err != nil {
			return
		}
		conn.WriteMessage(protocol.NewShutdownReply())
		dispatchLn.Close()
	}()

	received := make(chan protocol.ScanNotification, 1)
	go func() {
		nc, err := notifyLn.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		reader := bufio.NewReader(nc)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		var n protocol.ScanNotification
		json.Unmarshal([]byte(line), &n)
		received <- n
	}()

	policy := fixedPolicy{access: "denied", comment: "malware"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reviewer.RunLoop(ctx, dispatchLn.Addr().String(), notifyLn.Addr().String(), policy, testLogger())

	select {
	case n := <-received:
		if n.Notification.Review == nil {
			t.Fatal("expected a review notification")
		}
		if n.Notification.Review.RequestID != 7 || n.Notification.Review.Access != "denied" || n.Notification.Review.Comment != "malware" {
			t.Errorf("review notification = %+v, want request_id=7 access=denied comment=malware", n.Notification.Review)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive a review notification")
	}
}
