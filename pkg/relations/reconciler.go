package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

// reconcileBatchSize bounds how many recently updated documents a single
// sweep examines.
const reconcileBatchSize = 500

// Reconciler periodically verifies that each recently updated document's
// stored edge set matches the references parsed from its content, and
// repairs any drift. The synchronous save path remains the source of
// truth; this only catches writes that bypassed it.
type Reconciler struct {
	store    store.Store
	index    *Index
	logger   *observability.Logger
	metrics  *observability.Metrics
	schedule string

	cron     *cron.Cron
	lookback time.Duration
}

// NewReconciler creates a Reconciler running on the given cron schedule
// (e.g. "@every 15m").
func NewReconciler(s store.Store, index *Index, logger *observability.Logger, metrics *observability.Metrics, schedule string) *Reconciler {
	return &Reconciler{
		store:    s,
		index:    index,
		logger:   logger,
		metrics:  metrics,
		schedule: schedule,
		lookback: time.Hour,
	}
}

// Start schedules the periodic sweep. It returns an error if the schedule
// expression is invalid.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New()

	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Sweep(ctx); err != nil {
			r.logger.WithError(err).Error("reconciler sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconciler schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.logger.WithField("schedule", r.schedule).Info("reconciler started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep examines documents updated within the lookback window and repairs
// any whose stored edges diverge from their content.
func (r *Reconciler) Sweep(ctx context.Context) error {
	since := time.Now().Add(-r.lookback).Unix()

	docs, err := r.store.ListDocumentsUpdatedSince(ctx, since, reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list recently updated documents: %w", err)
	}

	repaired := 0
	for _, doc := range docs {
		changed, err := r.reconcileDocument(ctx, doc)
		if err != nil {
			r.logger.WithError(err).WithField("document_id", doc.ID).Warn("failed to reconcile document")
			continue
		}
		if changed {
			repaired++
		}
	}

	if repaired > 0 {
		r.logger.WithFields(map[string]interface{}{
			"examined": len(docs),
			"repaired": repaired,
		}).Info("reconciler repaired drifted edge sets")
	}
	return nil
}

func (r *Reconciler) reconcileDocument(ctx context.Context, doc *blocks.Document) (bool, error) {
	if !r.index.Embeddable(doc.Type) {
		return false, nil
	}

	want := make([]int64, 0)
	for _, ref := range blocks.ExtractBlockRefs(doc.Content) {
		entry, err := r.store.GetIndexEntryByBlock(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		want = append(want, entry.ID)
	}

	have, err := r.store.GetDocumentEdges(ctx, doc.ID)
	if err != nil {
		return false, err
	}

	if edgeSetsEqual(want, have) {
		return false, nil
	}

	if err := r.store.ReplaceDocumentEdges(ctx, doc.ID, want); err != nil {
		return false, err
	}
	if r.metrics != nil {
		r.metrics.IndexEntriesRepaired.Inc()
	}
	return true, nil
}

func edgeSetsEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int64]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}
