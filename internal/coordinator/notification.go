package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/repository"
)

// NotificationEndpoint receives one-shot scan-finished and
// review-finished messages, per spec.md §4.5.
type NotificationEndpoint struct {
	store       repository.Persistence
	reviewQueue *queue.Queue[domain.ReviewTask]
	logger      *slog.Logger
}

func NewNotificationEndpoint(store repository.Persistence, reviewQueue *queue.Queue[domain.ReviewTask], logger *slog.Logger) *NotificationEndpoint {
	return &NotificationEndpoint{
		store:       store,
		reviewQueue: reviewQueue,
		logger:      logger.With("component", "notification_endpoint"),
	}
}

func (e *NotificationEndpoint) Serve(ctx context.Context, ln net.Listener) error {
	return acceptLoop(ctx, ln, e.logger, func(nc net.Conn) {
		e.handle(ctx, nc)
	})
}

func (e *NotificationEndpoint) handle(ctx context.Context, nc net.Conn) {
	conn := protocol.NewConn(nc)
	defer conn.Close()

	var raw json.RawMessage
	if err := conn.ReadMessage(&raw); err != nil {
		e.logger.DebugContext(ctx, "notification read failed", "error", err)
		return
	}

	var n protocol.ScanNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		e.logger.WarnContext(ctx, "malformed notification", "error", err)
		return
	}

	switch {
	case n.Notification.Scan != nil:
		e.handleScanFinished(ctx, n.Notification.Scan.RequestID, n.Notification.Scan.Domain)
	case n.Notification.Review != nil:
		e.handleReviewFinished(ctx, n.Notification.Review.RequestID, n.Notification.Review.Domain,
			n.Notification.Review.Access, n.Notification.Review.Comment)
	default:
		e.logger.WarnContext(ctx, "unrecognized notification shape")
	}
}

func (e *NotificationEndpoint) handleScanFinished(ctx context.Context, requestID int64, domainName string) {
	normalized := domain.NormalizeName(domainName)
	valid, err := e.store.IsRequestValid(ctx, requestID, normalized)
	if err != nil {
		e.logger.ErrorContext(ctx, "is_request_valid failed", "request_id", requestID, "error", err)
		return
	}
	if !valid {
		e.logger.WarnContext(ctx, "scan-finished for invalid request", "request_id", requestID, "domain", normalized)
		return
	}

	// A finished scan sets the request to scanned with an empty
	// comment, per spec.md §4.5.
	if err := e.store.UpdateRequest(ctx, requestID, domain.RequestScanned, ""); err != nil {
		e.logger.ErrorContext(ctx, "update request failed", "request_id", requestID, "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("scan").Inc()

	e.reviewQueue.Push(domain.ReviewTask{RequestID: requestID, Domain: normalized})
	metrics.QueueDepth.WithLabelValues("review").Set(float64(e.reviewQueue.Size()))
}

func (e *NotificationEndpoint) handleReviewFinished(ctx context.Context, requestID int64, domainName, access, comment string) {
	normalized := domain.NormalizeName(domainName)
	valid, err := e.store.IsRequestValid(ctx, requestID, normalized)
	if err != nil {
		e.logger.ErrorContext(ctx, "is_request_valid failed", "request_id", requestID, "error", err)
		return
	}
	if !valid {
		e.logger.WarnContext(ctx, "review-finished for invalid request", "request_id", requestID, "domain", normalized)
		return
	}
	if access != string(domain.AccessPermitted) && access != string(domain.AccessDenied) {
		e.logger.WarnContext(ctx, "review-finished with invalid access", "request_id", requestID, "access", access)
		return
	}

	state := domain.RequestState(access)
	if err := e.store.UpdateRequest(ctx, requestID, state, comment); err != nil {
		e.logger.ErrorContext(ctx, "update request failed", "request_id", requestID, "error", err)
		return
	}
	// This bumps Domain.updated_at, per spec.md §4.5.
	if err := e.store.UpdateDomain(ctx, normalized, domain.Access(access), comment); err != nil {
		e.logger.ErrorContext(ctx, "update domain failed", "domain", normalized, "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("review").Inc()
}
