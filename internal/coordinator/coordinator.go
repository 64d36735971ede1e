package coordinator

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/queue"
	"github.com/akowasch/domainsearch/internal/repository"
	"github.com/akowasch/domainsearch/internal/session"
)

// Addrs bundles the four endpoint addresses spec.md §6 enumerates.
type Addrs struct {
	Rating         string
	ScanDispatch   string
	Notify         string
	ReviewDispatch string
}

// SnapshotPaths bundles the two coordinator-owned queue snapshot
// files.
type SnapshotPaths struct {
	ScanQueue   string
	ReviewQueue string
}

// Coordinator wires QueueStore, SessionRegistry and the four endpoints
// together and drives shutdown orchestration: stop accepting, drain,
// snapshot queues, close persistence (spec.md §2).
type Coordinator struct {
	store       repository.Persistence
	sessions    *session.Registry
	scanQueue   *queue.Queue[domain.ScanTask]
	reviewQueue *queue.Queue[domain.ReviewTask]

	rating *RatingEndpoint
	scan   *DispatchEndpoint[domain.ScanTask]
	review *DispatchEndpoint[domain.ReviewTask]
	notify *NotificationEndpoint

	addrs         Addrs
	snapshotPaths SnapshotPaths
	shuttingDown  atomic.Bool
	logger        *slog.Logger
}

// New constructs a Coordinator ready to Run. pullTimeout bounds every
// DispatchEndpoint's queue poll.
func New(store repository.Persistence, addrs Addrs, snapshotPaths SnapshotPaths, domainExpiration, requestExpiration, pullTimeout time.Duration, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		store:         store,
		sessions:      session.NewRegistry(),
		scanQueue:     queue.New(queue.ScanTaskCodec),
		reviewQueue:   queue.New(queue.ReviewTaskCodec),
		addrs:         addrs,
		snapshotPaths: snapshotPaths,
		logger:        logger.With("component", "coordinator"),
	}

	c.rating = NewRatingEndpoint(store, c.scanQueue, domainExpiration, requestExpiration, logger)
	c.scan = NewDispatchEndpoint("scan", c.scanQueue, c.sessions, session.RoleScanner, pullTimeout, &c.shuttingDown, logger)
	c.review = NewDispatchEndpoint("review", c.reviewQueue, c.sessions, session.RoleReviewer, pullTimeout, &c.shuttingDown, logger)
	c.notify = NewNotificationEndpoint(store, c.reviewQueue, logger)

	return c
}

// Restore reloads both queue snapshots at startup, validating entries
// against Persistence per spec.md §4.2.
func (c *Coordinator) Restore(ctx context.Context) error {
	validateScan := func(ctx context.Context, t domain.ScanTask) bool {
		valid, err := c.store.IsRequestValid(ctx, t.RequestID, t.Domain)
		return err == nil && valid
	}
	if restored, dropped, err := c.scanQueue.Restore(ctx, c.snapshotPaths.ScanQueue, validateScan); err != nil {
		return err
	} else if restored+dropped > 0 {
		c.logger.InfoContext(ctx, "restored scan_queue snapshot", "restored", restored, "dropped", dropped)
	}

	validateReview := func(ctx context.Context, t domain.ReviewTask) bool {
		valid, err := c.store.IsRequestValid(ctx, t.RequestID, t.Domain)
		return err == nil && valid
	}
	if restored, dropped, err := c.reviewQueue.Restore(ctx, c.snapshotPaths.ReviewQueue, validateReview); err != nil {
		return err
	} else if restored+dropped > 0 {
		c.logger.InfoContext(ctx, "restored review_queue snapshot", "restored", restored, "dropped", dropped)
	}
	return nil
}

// Run listens on all four endpoints and blocks until ctx is canceled,
// then performs shutdown orchestration.
func (c *Coordinator) Run(ctx context.Context) error {
	listeners, err := c.listenAll()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	serve := func(name string, ln net.Listener, fn func(context.Context, net.Listener) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx, ln); err != nil {
				c.logger.ErrorContext(ctx, "endpoint serve error", "endpoint", name, "error", err)
			}
		}()
	}

	serve("rating", listeners.rating, c.rating.Serve)
	serve("scan_dispatch", listeners.scan, c.scan.Serve)
	serve("review_dispatch", listeners.review, c.review.Serve)
	serve("notify", listeners.notify, c.notify.Serve)

	<-ctx.Done()
	c.shuttingDown.Store(true)
	c.logger.Info("coordinator shutting down")

	wg.Wait()

	if err := c.scanQueue.Snapshot(c.snapshotPaths.ScanQueue); err != nil {
		c.logger.Error("scan_queue snapshot failed", "error", err)
	}
	if err := c.reviewQueue.Snapshot(c.snapshotPaths.ReviewQueue); err != nil {
		c.logger.Error("review_queue snapshot failed", "error", err)
	}
	c.store.Close()

	return nil
}

type boundListeners struct {
	rating, scan, review, notify net.Listener
}

func (c *Coordinator) listenAll() (boundListeners, error) {
	var lns boundListeners
	var err error

	if lns.rating, err = listen(c.addrs.Rating); err != nil {
		return lns, err
	}
	if lns.scan, err = listen(c.addrs.ScanDispatch); err != nil {
		return lns, err
	}
	if lns.review, err = listen(c.addrs.ReviewDispatch); err != nil {
		return lns, err
	}
	if lns.notify, err = listen(c.addrs.Notify); err != nil {
		return lns, err
	}
	return lns, nil
}

// SessionCounts exposes SessionRegistry counts for the admin gauge.
func (c *Coordinator) SessionCounts() (scanners, reviewers int) {
	return c.sessions.CountByRole(session.RoleScanner), c.sessions.CountByRole(session.RoleReviewer)
}
