package relations

import (
	"context"
	"errors"
	"fmt"
	"html"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

var queryTracer = otel.Tracer("blockindex/relations/query")

// PerPage is the fixed page size for related-document listings
const PerPage = 10

// Query errors, one per failure class surfaced by the relationships endpoint
var (
	ErrMissingBlockID = errors.New("block ID is required")
	ErrNotFound       = errors.New("block not found")
	ErrWrongKind      = errors.New("document is not a reusable block")
	ErrPageOutOfRange = errors.New("page number is larger than the number of pages available")
)

// RenderedText carries a display string in its rendered form
type RenderedText struct {
	Rendered string `json:"rendered"`
}

// DocumentSummary is the listing projection of a related document
type DocumentSummary struct {
	ID     int64         `json:"id"`
	Status blocks.Status `json:"status"`
	Type   string        `json:"type"`
	Title  RenderedText  `json:"title"`
}

// RelatedPage is one page of documents embedding a block
type RelatedPage struct {
	Items      []DocumentSummary `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPages int               `json:"total_pages"`
	Page       int               `json:"page"`
}

// Query serves paginated reverse lookups over the relationship index
type Query struct {
	store  store.Store
	logger *observability.Logger
}

// NewQuery creates a Query over the given store
func NewQuery(s store.Store, logger *observability.Logger) *Query {
	return &Query{store: s, logger: logger}
}

// ListRelated returns the page-th page of documents embedding the block.
// page defaults to 1 when zero. A block with no relationships yields an
// empty page, not an error.
func (q *Query) ListRelated(ctx context.Context, blockID int64, page int) (*RelatedPage, error) {
	ctx, span := queryTracer.Start(ctx, "ListRelated",
		trace.WithAttributes(
			attribute.Int64("block_id", blockID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if blockID == 0 {
		return nil, ErrMissingBlockID
	}
	if page < 1 {
		page = 1
	}

	doc, err := q.store.GetDocument(ctx, blockID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load block %d: %w", blockID, err)
	}
	if !doc.IsBlock() {
		return nil, ErrWrongKind
	}

	entry, err := q.store.GetIndexEntryByBlock(ctx, blockID)
	if errors.Is(err, store.ErrNotFound) {
		// An unindexed block has no relationships yet.
		if page > 1 {
			return nil, ErrPageOutOfRange
		}
		return &RelatedPage{Items: []DocumentSummary{}, Page: page}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load index entry for block %d: %w", blockID, err)
	}

	offset := (page - 1) * PerPage
	docs, total, err := q.store.ListRelatedDocuments(ctx, entry.ID, PerPage, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "related lookup failed")
		return nil, fmt.Errorf("failed to list related documents for block %d: %w", blockID, err)
	}

	totalPages := (total + PerPage - 1) / PerPage
	if total > 0 && page > totalPages {
		return nil, ErrPageOutOfRange
	}

	items := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		items = append(items, DocumentSummary{
			ID:     d.ID,
			Status: d.Status,
			Type:   d.Type,
			Title:  RenderedText{Rendered: html.EscapeString(d.Title)},
		})
	}

	span.SetAttributes(attribute.Int("total_items", total))
	return &RelatedPage{
		Items:      items,
		TotalItems: total,
		TotalPages: totalPages,
		Page:       page,
	}, nil
}
