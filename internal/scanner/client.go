// Package scanner contains the scanner worker process glue: a
// dispatch client that pulls scan tasks, drives the module scheduler
// for each, and a notification client that reports completion back to
// the coordinator.
package scanner

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/protocol"
)

// NotifyClient implements modulescheduler.Notifier by dialing the
// coordinator's NotificationEndpoint for one message per call.
type NotifyClient struct {
	addr string
}

func NewNotifyClient(addr string) *NotifyClient {
	return &NotifyClient{addr: addr}
}

func (c *NotifyClient) ScanFinished(ctx context.Context, requestID int64, domainName string) error {
	nc, err := dialContext(ctx, c.addr)
	if err != nil {
		return err
	}
	conn := protocol.NewConn(nc)
	defer conn.Close()
	return conn.WriteMessage(protocol.NewScanFinished(requestID, domainName))
}

func dialContext(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 5 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// Scheduler is the subset of modulescheduler.Scheduler the dispatch
// loop drives.
type Scheduler interface {
	Run(ctx context.Context, requestID int64, domainName string, attempt int, rerunModules map[string]struct{}) error
}

// RunDispatchLoop connects to the scan DispatchEndpoint and repeats
// the single-threaded pull-execute-notify cycle until ctx is
// canceled. A shutdown message from the coordinator ends the current
// session only; the loop then dials again. A dial
// failure backs off and retries; this is what makes a scanner
// reconnect and pick up a requeued task after a prior drop (spec.md
// §8 S2).
func RunDispatchLoop(ctx context.Context, addr string, scheduler Scheduler, logger *slog.Logger) {
	logger = logger.With("component", "scanner_dispatch_client")
	backoff := time.Second

	for ctx.Err() == nil {
		if err := dispatchSession(ctx, addr, scheduler, logger); err != nil {
			logger.WarnContext(ctx, "dispatch session ended", "error", err)
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

func dispatchSession(ctx context.Context, addr string, scheduler Scheduler, logger *slog.Logger) error {
	nc, err := dialContext(ctx, addr)
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
			return nil // shutdown message: reconnect loop will exit via ctx.Done when draining
		}

		task := resp.Response.Task
		normalized := domain.NormalizeName(task.Domain)
		if err := scheduler.Run(ctx, task.RequestID, normalized, 1, nil); err != nil {
			logger.ErrorContext(ctx, "scheduler run failed", "request_id", task.RequestID, "domain", normalized, "error", err)
		}
	}
}
