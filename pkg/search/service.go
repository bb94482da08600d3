// Package search resolves block candidates for the editor's inserter and
// ranks them by relevance against the user's keywords.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/store"
)

var searchTracer = otel.Tracer("blockindex/search/service")

// Resolution errors, one per failure class
var (
	ErrMissingSearchID = errors.New("search ID is required")
	ErrInvalidSearchID = errors.New("search ID must be numeric")
	ErrNotFound        = errors.New("document not found")
	// ErrBulkFetch marks failures loading the resolved candidates, as
	// opposed to failures resolving which candidates to load.
	ErrBulkFetch = errors.New("failed to fetch candidate blocks")
)

// RawText carries a display string in its raw, unrendered form
type RawText struct {
	Raw string `json:"raw"`
}

// BlockResult is the search projection of a reusable block. Title and
// Content stay raw so the client-side ranker scores the authored text.
type BlockResult struct {
	ID         int64   `json:"id"`
	Title      RawText `json:"title"`
	Content    RawText `json:"content"`
	Categories []int64 `json:"categories"`
}

// Service resolves a search ID to the reusable blocks it designates
type Service struct {
	store           store.Store
	logger          *observability.Logger
	metrics         *observability.Metrics
	embeddableTypes map[string]bool
}

// NewService creates a search Service. embeddableTypes mirror the
// relationship index configuration.
func NewService(s store.Store, logger *observability.Logger, metrics *observability.Metrics, embeddableTypes []string) *Service {
	types := map[string]bool{blocks.TypeBlock: true}
	for _, t := range embeddableTypes {
		types[t] = true
	}
	return &Service{
		store:           s,
		logger:          logger,
		metrics:         metrics,
		embeddableTypes: types,
	}
}

// ResolveCandidates maps a search ID to block results. A block ID yields
// that block; an embeddable document's ID yields the blocks it references,
// in parse order; any other document type yields an empty list.
func (s *Service) ResolveCandidates(ctx context.Context, searchID string) ([]BlockResult, error) {
	ctx, span := searchTracer.Start(ctx, "ResolveCandidates",
		trace.WithAttributes(attribute.String("search_id", searchID)),
	)
	defer span.End()

	if searchID == "" {
		return nil, ErrMissingSearchID
	}

	id, err := strconv.ParseInt(searchID, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidSearchID
	}

	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load document %d: %w", id, err)
	}

	var ids []int64
	switch {
	case doc.IsBlock():
		ids = []int64{doc.ID}
	case s.embeddableTypes[doc.Type]:
		ids = blocks.ExtractBlockRefs(doc.Content)
	default:
		span.SetStatus(otelcodes.Ok, "unsupported document type")
		return []BlockResult{}, nil
	}

	if len(ids) == 0 {
		return []BlockResult{}, nil
	}

	found, err := s.store.GetBlocksByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "bulk fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrBulkFetch, err)
	}

	results := make([]BlockResult, 0, len(found))
	for _, b := range found {
		results = append(results, BlockResult{
			ID:         b.ID,
			Title:      RawText{Raw: b.Title},
			Content:    RawText{Raw: b.Content},
			Categories: b.Categories,
		})
	}

	if s.metrics != nil {
		s.metrics.SearchCandidateCount.Observe(float64(len(results)))
	}
	span.SetAttributes(attribute.Int("candidate_count", len(results)))
	return results, nil
}

// ListBlocks returns blocks matching the inserter's browse query
func (s *Service) ListBlocks(ctx context.Context, q store.BlockQuery) ([]BlockResult, error) {
	found, err := s.store.ListBlocks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	results := make([]BlockResult, 0, len(found))
	for _, b := range found {
		results = append(results, BlockResult{
			ID:         b.ID,
			Title:      RawText{Raw: b.Title},
			Content:    RawText{Raw: b.Content},
			Categories: b.Categories,
		})
	}
	return results, nil
}
