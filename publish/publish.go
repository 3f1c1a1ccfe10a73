// Package publish drains the publish queue (store.PublishQueueRow) with
// at-least-once delivery to one or more configured publishers, the
// generalization of publisher/publisher.go's CT-log submission loop to
// an arbitrary Target (spec.md §4.4's publish queue, §7's publish
// pipeline). A worker pool bounded by golang.org/x/sync/errgroup drains
// entries concurrently, matching the issuer's signer-pool concurrency
// idiom (spec.md §5).
package publish

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/silverline-ca/corepki/log"
	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/store"
)

// Target delivers one certificate's DER bytes to an external system
// (an S3 bucket, a CT log, a syslog relay). Submit must be idempotent:
// the drain loop may retry a delivery that timed out but actually
// succeeded.
type Target interface {
	Name() string
	Submit(ctx context.Context, caName string, der []byte) error
}

// Drainer repeatedly pulls pending publish-queue entries for one
// publisher id and fans them out across a bounded worker pool.
type Drainer struct {
	store       *store.Store
	target      Target
	publisherID int64
	parallelism int
	pageSize    int
	logger      logr.Logger
}

// NewDrainer builds a Drainer for one publisher/target pair.
func NewDrainer(st *store.Store, publisherID int64, target Target, parallelism, pageSize int, logger logr.Logger) *Drainer {
	if parallelism <= 0 {
		parallelism = 4
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Drainer{store: st, target: target, publisherID: publisherID, parallelism: parallelism, pageSize: pageSize, logger: logger}
}

// DrainOnce pulls up to one page of pending entries and publishes them
// concurrently, removing each from the queue only after Submit
// succeeds (at-least-once: a crash between Submit and the remove leaves
// the entry to be retried, which Target.Submit must tolerate).
func (d *Drainer) DrainOnce(ctx context.Context) (published int, err error) {
	entries, err := d.store.GetPublishQueueEntries(ctx, d.publisherID, d.pageSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	results := make([]error, len(entries))
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = d.publishOne(gctx, entry)
			return nil // collect per-entry errors rather than aborting the group
		})
	}
	_ = g.Wait()

	var firstErr error
	for i, entry := range entries {
		if results[i] != nil {
			if firstErr == nil {
				firstErr = results[i]
			}
			d.logger.Error(results[i], "publish: entry failed, left for retry", "cert_id", entry.CertID, "publisher", d.publisherID)
			continue
		}
		published++
	}
	return published, firstErr
}

func (d *Drainer) publishOne(ctx context.Context, entry store.PublishQueueRow) error {
	row, err := d.store.GetCertForID(ctx, entry.CertID)
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "publish: load cert %d for publishing", entry.CertID)
	}
	if err := d.target.Submit(ctx, d.target.Name(), row.Cert); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "publish: submit cert %d to %s", entry.CertID, d.target.Name())
	}
	if err := d.store.RemoveFromPublishQueue(ctx, entry); err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "publish: dequeue cert %d after successful submit", entry.CertID)
	}
	log.Audit(d.logger, log.AuditEvent{
		Action: "publish.delivered",
		Serial: row.SN,
		Fields: map[string]any{"publisher": d.publisherID, "target": d.target.Name()},
	})
	return nil
}

// Run polls DrainOnce on interval until ctx is canceled, the steady-state
// background loop a publish worker process runs.
func (d *Drainer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logger.Error(err, "publish: drain pass encountered errors", "publisher", d.publisherID)
			}
		}
	}
}
