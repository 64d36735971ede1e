// Package coordinator implements the four co-resident TCP endpoints
// and shutdown orchestration spec.md §2 and §4.3-§4.5 describe.
package coordinator

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/metrics"
	"github.com/akowasch/domainsearch/internal/protocol"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/repository"
)

// RatingEndpoint answers one-shot rating requests from cache or
// enqueues a new scan, per spec.md §4.3.
type RatingEndpoint struct {
	store             repository.Persistence
	scanQueue         *queue.Queue[domain.ScanTask]
	domainExpiration  time.Duration
	requestExpiration time.Duration
	logger            *slog.Logger
}

func NewRatingEndpoint(store repository.Persistence, scanQueue *queue.Queue[domain.ScanTask], domainExpiration, requestExpiration time.Duration, logger *slog.Logger) *RatingEndpoint {
	return &RatingEndpoint{
		store:             store,
		scanQueue:         scanQueue,
		domainExpiration:  domainExpiration,
		requestExpiration: requestExpiration,
		logger:            logger.With("component", "rating_endpoint"),
	}
}

// Serve accepts connections on ln until ctx is canceled. Each
// connection handles exactly one request/response per spec.md §4.3's
// "one-shot" framing.
func (e *RatingEndpoint) Serve(ctx context.Context, ln net.Listener) error {
	return acceptLoop(ctx, ln, e.logger, func(nc net.Conn) {
		e.handle(ctx, nc)
	})
}

func (e *RatingEndpoint) handle(ctx context.Context, nc net.Conn) {
	conn := protocol.NewConn(nc)
	defer conn.Close()

	var req protocol.RatingRequest
	if err := conn.ReadMessage(&req); err != nil {
		e.logger.DebugContext(ctx, "rating read failed", "error", err)
		return
	}

	normalized := domain.NormalizeName(req.Request.Rating.Domain)
	if normalized == "" {
		e.reply(conn, protocol.NewRatingMsg("invalid request"), "invalid_request")
		return
	}
	if !domain.IsValidName(normalized) {
		e.reply(conn, protocol.NewRatingMsg("invalid domain"), "invalid_domain")
		return
	}

	found, err := e.store.FindDomain(ctx, normalized)
	if err != nil {
		e.logger.ErrorContext(ctx, "find domain failed", "domain", normalized, "error", err)
		e.reply(conn, protocol.NewRatingMsg("invalid request"), "invalid_request")
		return
	}

	if found != nil {
		e.reply(conn, protocol.NewRatingReply(normalized, string(found.State), found.Comment), "cache_hit")
		e.maybeEnqueue(ctx, found.ID, normalized, found.UpdatedAt)
		return
	}

	id, err := e.store.InsertDomain(ctx, normalized)
	if err != nil {
		e.logger.ErrorContext(ctx, "insert domain failed", "domain", normalized, "error", err)
		return
	}
	// Optimistic default per spec.md §9 open question 3: reply
	// permitted before the scan has run.
	e.reply(conn, protocol.NewRatingReply(normalized, string(domain.AccessPermitted), ""), "cache_miss")
	e.enqueue(ctx, id, normalized)
}

func (e *RatingEndpoint) reply(conn *protocol.Conn, msg protocol.RatingResponse, kind string) {
	if err := conn.WriteMessage(msg); err != nil {
		e.logger.DebugContext(context.Background(), "rating write failed", "error", err)
		return
	}
	metrics.RatingRepliesTotal.WithLabelValues(kind).Inc()
}

// maybeEnqueue implements §4.3 step 2: skip enqueue when both the
// domain's cached state and its most recent request are still fresh.
func (e *RatingEndpoint) maybeEnqueue(ctx context.Context, domainID int64, normalized string, updatedAt time.Time) {
	if time.Since(updatedAt) < e.domainExpiration {
		latest, err := e.store.LatestRequestFor(ctx, domainID)
		if err != nil {
			e.logger.ErrorContext(ctx, "latest request lookup failed", "domain", normalized, "error", err)
		} else if latest != nil && time.Since(latest.CreatedAt) < e.requestExpiration {
			return
		}
	}
	e.enqueue(ctx, domainID, normalized)
}

func (e *RatingEndpoint) enqueue(ctx context.Context, domainID int64, normalized string) {
	requestID, err := e.store.InsertRequest(ctx, domainID)
	if err != nil {
		e.logger.ErrorContext(ctx, "insert request failed", "domain", normalized, "error", err)
		return
	}
	e.scanQueue.Push(domain.ScanTask{RequestID: requestID, Domain: normalized})
	metrics.QueueDepth.WithLabelValues("scan").Set(float64(e.scanQueue.Size()))
}
