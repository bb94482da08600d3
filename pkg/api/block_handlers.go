package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/store"
)

// BlockPayload is the request body for block create/update
type BlockPayload struct {
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	Status     blocks.Status `json:"status"`
	Categories []int64       `json:"categories"`
}

// getBlock handles GET /api/v1/blocks/{id}
func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !doc.IsBlock()) {
		httputil.WriteNotFoundError(w, "blockindex.blocks.not_found", "No block found for the given ID.")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	categories, err := s.store.GetBlockCategories(r.Context(), id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, blocks.Block{Document: *doc, Categories: categories})
}

// createBlock handles POST /api/v1/blocks
//
// The save path mirrors a block save in the editor: derive a unique slug
// from the title, persist, bring the index entry up to date, then rebuild
// edges since blocks can embed other blocks.
func (s *Server) createBlock(w http.ResponseWriter, r *http.Request) {
	var payload BlockPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if !httputil.RequireNonEmpty(w, payload.Title, "title") {
		return
	}
	if payload.Status == "" {
		payload.Status = blocks.StatusPublished
	}
	if !payload.Status.Valid() {
		httputil.WriteValidationError(w, "blockindex.blocks.invalid_status", fmt.Sprintf("unknown status %q", payload.Status))
		return
	}

	ctx := r.Context()

	slug, err := s.uniqueSlug(ctx, payload.Title, 0)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	doc := &blocks.Document{
		Type:    blocks.TypeBlock,
		Title:   payload.Title,
		Slug:    slug,
		Content: payload.Content,
		Status:  payload.Status,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if len(payload.Categories) > 0 {
		if err := s.store.SetBlockCategories(ctx, doc.ID, payload.Categories); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	s.syncAfterSave(ctx, nil, doc)

	httputil.WriteCreated(w, blocks.Block{Document: *doc, Categories: payload.Categories})
}

// updateBlock handles PUT /api/v1/blocks/{id}
func (s *Server) updateBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()

	before, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !before.IsBlock()) {
		httputil.WriteNotFoundError(w, "blockindex.blocks.not_found", "No block found for the given ID.")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var payload BlockPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if !httputil.RequireNonEmpty(w, payload.Title, "title") {
		return
	}
	if payload.Status == "" {
		payload.Status = before.Status
	}
	if !payload.Status.Valid() {
		httputil.WriteValidationError(w, "blockindex.blocks.invalid_status", fmt.Sprintf("unknown status %q", payload.Status))
		return
	}

	after := *before
	after.Title = payload.Title
	after.Content = payload.Content
	after.Status = payload.Status

	// A renamed block gets a fresh slug; the index entry follows.
	if payload.Title != before.Title {
		slug, err := s.uniqueSlug(ctx, payload.Title, id)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		after.Slug = slug
	}

	if err := s.store.UpdateDocument(ctx, &after); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if payload.Categories != nil {
		if err := s.store.SetBlockCategories(ctx, id, payload.Categories); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	s.syncAfterSave(ctx, before, &after)

	categories, err := s.store.GetBlockCategories(ctx, id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, blocks.Block{Document: after, Categories: categories})
}

// deleteBlock handles DELETE /api/v1/blocks/{id}. The index entry and its
// edges go first so no reverse lookup can resolve to a dead block.
func (s *Server) deleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()

	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !doc.IsBlock()) {
		httputil.WriteNotFoundError(w, "blockindex.blocks.not_found", "No block found for the given ID.")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if _, err := s.index.RemoveIndexEntry(ctx, doc); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// syncAfterSave runs the index maintenance that follows any document save.
// Failures are logged, not surfaced: the save itself already succeeded and
// the reconciler will repair the index.
func (s *Server) syncAfterSave(ctx context.Context, before, after *blocks.Document) {
	if _, err := s.index.EnsureIndexEntry(ctx, after); err != nil {
		s.logger.WithError(err).WithField("document_id", after.ID).Error("index entry sync failed")
	}
	if _, err := s.index.SynchronizeEdges(ctx, before, after); err != nil {
		s.logger.WithError(err).WithField("document_id", after.ID).Error("edge sync failed")
	}
}

// uniqueSlug derives a slug from the title, suffixing -2, -3, ... until it
// is unique among documents other than excludeID.
func (s *Server) uniqueSlug(ctx context.Context, title string, excludeID int64) (string, error) {
	base := blocks.Slugify(title)
	if base == "" {
		base = "block"
	}

	slug := base
	for n := 2; ; n++ {
		exists, err := s.store.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug uniqueness: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
