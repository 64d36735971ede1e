// Package reviewer implements the reviewer worker's ReviewLoop from
// spec.md §2: a single-threaded pull-execute-notify loop that
// classifies a scanned domain as permitted or denied and reports the
// verdict back to the coordinator.
package reviewer

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/repository"
)

// Policy decides a verdict for a scanned domain. The decision
// algorithm itself is an external, unspecified concern (spec.md §1
// scopes only the coordinator's dispatch/notification plumbing); the
// one implementation here, DefaultPolicy, does not read module output.
type Policy interface {
	Decide(ctx context.Context, requestID int64, domainName string) (access string, comment string)
}

// DefaultPolicy always permits. The actual review criteria a human or
// automated reviewer applies are an external, unspecified concern;
// this stands in so the loop has a real verdict to report back.
type DefaultPolicy struct {
	Store repository.Persistence
}

func (p DefaultPolicy) Decide(ctx context.Context, requestID int64, domainName string) (string, string) {
	return string(domain.AccessPermitted), ""
}

// RunLoop dials the review DispatchEndpoint and NotificationEndpoint
// and repeats pull-execute-notify until ctx is canceled. A shutdown
// message from the coordinator ends the current session only; the
// loop then dials again, backing off while the dial fails.
func RunLoop(ctx context.Context, dispatchAddr, notifyAddr string, policy Policy, logger *slog.Logger) {
	logger = logger.With("component", "review_loop")
	backoff := time.Second

	for ctx.Err() == nil {
		if err := reviewSession(ctx, dispatchAddr, notifyAddr, policy, logger); err != nil {
			logger.WarnContext(ctx, "review session ended", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func reviewSession(ctx context.Context, dispatchAddr, notifyAddr string, policy Policy, logger *slog.Logger) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	nc, err := d.DialContext(ctx, "tcp", dispatchAddr)
	if err != nil {
		return err
	}
	conn := protocol.NewConn(nc)
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := conn.WriteMessage(protocol.TaskRequest{Request: "task"}); err != nil {
			return err
		}

		var resp protocol.TaskResponse
		if err := conn.ReadMessage(&resp); err != nil {
			return err
		}
		if resp.Response.Task == nil {
			return nil
		}

		task := resp.Response.Task
		access, comment := policy.Decide(ctx, task.RequestID, task.Domain)

		if err := notify(ctx, notifyAddr, task.RequestID, task.Domain, access, comment); err != nil {
			logger.ErrorContext(ctx, "review notify failed", "request_id", task.RequestID, "error", err)
		}
	}
}

func notify(ctx context.Context, addr string, requestID int64, domainName, access, comment string) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	conn := protocol.NewConn(nc)
	defer conn.Close()
	return conn.WriteMessage(protocol.NewReviewFinished(requestID, domainName, access, comment))
}
