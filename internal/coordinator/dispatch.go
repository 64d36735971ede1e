package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/session"
)

// Task is the shape DispatchEndpoint dispatches: scan and review tasks
// both reduce to a (request_id, domain) pair.
type Task interface {
	Ref() (requestID int64, domainName string)
}

// DispatchEndpoint is the long-lived worker connection endpoint from
// spec.md §4.4, generic over scan and review tasks so one
// implementation serves both dispatch ports.
type DispatchEndpoint[T Task] struct {
	queueName    string
	queue        *queue.Queue[T]
	sessions     *session.Registry
	role         session.Role
	pullTimeout  time.Duration
	shuttingDown *atomic.Bool
	logger       *slog.Logger
}

func NewDispatchEndpoint[T Task](queueName string, q *queue.Queue[T], sessions *session.Registry, role session.Role, pullTimeout time.Duration, shuttingDown *atomic.Bool, logger *slog.Logger) *DispatchEndpoint[T] {
	return &DispatchEndpoint[T]{
		queueName:    queueName,
		queue:        q,
		sessions:     sessions,
		role:         role,
		pullTimeout:  pullTimeout,
		shuttingDown: shuttingDown,
		logger:       logger.With("component", "dispatch_endpoint", "queue", queueName),
	}
}

func (e *DispatchEndpoint[T]) Serve(ctx context.Context, ln net.Listener) error {
	return acceptLoop(ctx, ln, e.logger, func(nc net.Conn) {
		e.handleConn(ctx, nc)
	})
}

// handleConn runs the per-connection loop of spec.md §4.4: register,
// repeatedly read a task request and deliver a task or a shutdown
// message, and on a mid-delivery drop requeue the last delivered task.
func (e *DispatchEndpoint[T]) handleConn(ctx context.Context, nc net.Conn) {
	key := e.sessions.Add(nc, e.role)
	defer e.sessions.Remove(key)
	metrics.ConnectedWorkers.WithLabelValues(string(e.role)).Inc()
	defer metrics.ConnectedWorkers.WithLabelValues(string(e.role)).Dec()

	conn := protocol.NewConn(nc)
	defer conn.Close()

	var lastTask *T
	defer func() {
		if lastTask != nil {
			e.queue.Push(*lastTask)
			metrics.TasksRequeuedTotal.WithLabelValues(e.queueName).Inc()
			e.logger.WarnContext(ctx, "worker dropped mid-task, requeued", "remote", key)
		}
	}()

	for {
		var req protocol.TaskRequest
		if err := conn.ReadMessage(&req); err != nil {
			if !errors.Is(err, context.Canceled) {
				e.logger.DebugContext(ctx, "dispatch connection closed", "remote", key, "error", err)
			}
			return
		}
		if req.Request != "task" {
			e.logger.WarnContext(ctx, "protocol violation", "remote", key, "request", req.Request)
			return
		}
		// A successful read of the next task request proves the worker
		// is done with whatever it was handed last (this protocol is a
		// single-threaded pull-execute-notify loop per worker), so
		// last_task tracking resets here.
		lastTask = nil

		if e.shuttingDown.Load() {
			_ = conn.WriteMessage(protocol.NewShutdownReply())
			return
		}

		start := time.Now()
		task, ok := e.pullUntilAvailableOrShutdown(ctx)
		metrics.DispatchPullLatency.WithLabelValues(e.queueName).Observe(time.Since(start).Seconds())
		if !ok {
			_ = conn.WriteMessage(protocol.NewShutdownReply())
			return
		}

		requestID, domainName := task.Ref()
		if err := conn.WriteMessage(protocol.NewTaskReply(domainName, requestID)); err != nil {
			// Delivery itself failed; requeue immediately rather than
			// marking it last_task (the worker never saw it).
			e.queue.Push(task)
			metrics.TasksRequeuedTotal.WithLabelValues(e.queueName).Inc()
			return
		}
		taskCopy := task
		lastTask = &taskCopy

		metrics.QueueDepth.WithLabelValues(e.queueName).Set(float64(e.queue.Size()))
	}
}

// pullUntilAvailableOrShutdown polls the queue with a bounded timeout,
// per spec.md §5's "queue pull uses a bounded timeout so shutdown
// polling is responsive", until an item is available or shutdown is
// signaled.
func (e *DispatchEndpoint[T]) pullUntilAvailableOrShutdown(ctx context.Context) (T, bool) {
	for {
		if e.shuttingDown.Load() {
			var zero T
			return zero, false
		}
		task, ok := e.queue.Pull(ctx, e.pullTimeout)
		if ok {
			return task, true
		}
		if ctx.Err() != nil {
			var zero T
			return zero, false
		}
	}
}
