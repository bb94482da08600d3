// Package relations maintains the block relationship index: the mapping
// table of index entries for reusable blocks, the edge set connecting
// documents to the blocks they embed, and the query service over it.
package relations

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

var indexTracer = otel.Tracer("blockindex/relations/index")

// Result describes the outcome of an index entry operation
type Result int

const (
	ResultSkipped Result = iota
	ResultCreated
	ResultNoChange
	ResultUpdated
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSkipped:
		return "skipped"
	case ResultCreated:
		return "created"
	case ResultNoChange:
		return "no_change"
	case ResultUpdated:
		return "updated"
	case ResultFailed:
		return "failed"
	}
	return "unknown"
}

// Index synchronizes the relationship index with document saves
type Index struct {
	store           store.Store
	logger          *observability.Logger
	metrics         *observability.Metrics
	embeddableTypes map[string]bool
}

// NewIndex creates an Index. embeddableTypes are the document types whose
// content is scanned for block references; the block type itself is always
// embeddable since blocks can embed other blocks.
func NewIndex(s store.Store, logger *observability.Logger, metrics *observability.Metrics, embeddableTypes []string) *Index {
	types := map[string]bool{blocks.TypeBlock: true}
	for _, t := range embeddableTypes {
		types[t] = true
	}
	return &Index{
		store:           s,
		logger:          logger,
		metrics:         metrics,
		embeddableTypes: types,
	}
}

// Embeddable reports whether documents of the given type are scanned for
// block references.
func (idx *Index) Embeddable(docType string) bool {
	return idx.embeddableTypes[docType]
}

// EnsureIndexEntry guarantees a block has an index entry whose name and
// slug match the block. Draft blocks and non-block documents are skipped.
func (idx *Index) EnsureIndexEntry(ctx context.Context, doc *blocks.Document) (Result, error) {
	if !doc.IsBlock() || doc.Status == blocks.StatusDraft {
		return ResultSkipped, nil
	}

	entry, err := idx.store.GetIndexEntryByBlock(ctx, doc.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		idx.countSync(ResultFailed)
		return ResultFailed, fmt.Errorf("failed to look up index entry for block %d: %w", doc.ID, err)
	}

	if entry == nil {
		entry = &blocks.IndexEntry{
			BlockID: doc.ID,
			Name:    doc.Title,
			Slug:    doc.Slug,
		}
		if err := idx.store.CreateIndexEntry(ctx, entry); err != nil {
			idx.logger.WithError(err).WithField("block_id", doc.ID).Error("failed to create index entry")
			idx.countSync(ResultFailed)
			return ResultFailed, fmt.Errorf("failed to create index entry for block %d: %w", doc.ID, err)
		}
		idx.countSync(ResultCreated)
		return ResultCreated, nil
	}

	if entry.InSync(doc) {
		idx.countSync(ResultNoChange)
		return ResultNoChange, nil
	}

	entry.Name = doc.Title
	entry.Slug = doc.Slug
	if err := idx.store.UpdateIndexEntry(ctx, entry); err != nil {
		idx.countSync(ResultFailed)
		return ResultFailed, fmt.Errorf("failed to update index entry for block %d: %w", doc.ID, err)
	}
	idx.countSync(ResultUpdated)
	return ResultUpdated, nil
}

// ResyncIndexEntry repairs name/slug drift between a block and its entry.
// Unlike EnsureIndexEntry it never creates a missing entry.
func (idx *Index) ResyncIndexEntry(ctx context.Context, doc *blocks.Document) (Result, error) {
	if !doc.IsBlock() {
		return ResultSkipped, nil
	}

	entry, err := idx.store.GetIndexEntryByBlock(ctx, doc.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ResultSkipped, nil
	}
	if err != nil {
		return ResultFailed, fmt.Errorf("failed to look up index entry for block %d: %w", doc.ID, err)
	}

	if entry.InSync(doc) {
		return ResultNoChange, nil
	}

	entry.Name = doc.Title
	entry.Slug = doc.Slug
	if err := idx.store.UpdateIndexEntry(ctx, entry); err != nil {
		return ResultFailed, fmt.Errorf("failed to resync index entry for block %d: %w", doc.ID, err)
	}
	idx.countSync(ResultUpdated)
	return ResultUpdated, nil
}

// RemoveIndexEntry deletes a block's index entry together with every edge
// referencing it. Returns false when the document is not a block or has no
// entry.
func (idx *Index) RemoveIndexEntry(ctx context.Context, doc *blocks.Document) (bool, error) {
	if !doc.IsBlock() {
		return false, nil
	}

	entry, err := idx.store.GetIndexEntryByBlock(ctx, doc.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up index entry for block %d: %w", doc.ID, err)
	}

	if err := idx.store.DeleteIndexEntry(ctx, entry.ID); err != nil {
		return false, fmt.Errorf("failed to delete index entry %d: %w", entry.ID, err)
	}
	return true, nil
}

// SynchronizeEdges rebuilds a document's edge set from its content after a
// save. before may be nil for newly created documents. Returns true when
// the edge set was replaced.
//
// References to blocks without an index entry are skipped, so an edge for
// such a block only appears once the block is saved and the document is
// saved again.
func (idx *Index) SynchronizeEdges(ctx context.Context, before, after *blocks.Document) (bool, error) {
	ctx, span := indexTracer.Start(ctx, "SynchronizeEdges",
		trace.WithAttributes(
			attribute.Int64("document_id", after.ID),
			attribute.String("document_type", after.Type),
		),
	)
	defer span.End()

	if !idx.Embeddable(after.Type) {
		span.SetStatus(otelcodes.Ok, "type not embeddable")
		return false, nil
	}

	if before != nil && before.Content == after.Content {
		span.SetStatus(otelcodes.Ok, "content unchanged")
		return false, nil
	}

	refs := blocks.ExtractBlockRefs(after.Content)
	span.SetAttributes(attribute.Int("ref_count", len(refs)))

	entryIDs := make([]int64, 0, len(refs))
	for _, ref := range refs {
		entry, err := idx.store.GetIndexEntryByBlock(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			idx.logger.WithFields(map[string]interface{}{
				"document_id": after.ID,
				"block_id":    ref,
			}).Debug("skipping reference to unindexed block")
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "entry lookup failed")
			return false, fmt.Errorf("failed to resolve index entry for block %d: %w", ref, err)
		}
		entryIDs = append(entryIDs, entry.ID)
	}

	if err := idx.store.ReplaceDocumentEdges(ctx, after.ID, entryIDs); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "edge replacement failed")
		return false, fmt.Errorf("failed to replace edges for document %d: %w", after.ID, err)
	}

	if idx.metrics != nil {
		idx.metrics.IndexEdgesReplaced.Inc()
	}
	span.SetStatus(otelcodes.Ok, fmt.Sprintf("replaced %d edges", len(entryIDs)))
	return true, nil
}

func (idx *Index) countSync(result Result) {
	if idx.metrics != nil {
		idx.metrics.IndexSyncTotal.WithLabelValues(result.String()).Inc()
	}
}
